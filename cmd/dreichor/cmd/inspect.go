package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ceerkle/dreichor-trading/config"
	"github.com/ceerkle/dreichor-trading/journal"
	"github.com/ceerkle/dreichor-trading/replay"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Read-only views of the persisted audit trail",
	Long: `Query the persisted audit log and snapshots without modifying them.

Subcommands:
  events   - List audit events, optionally the last N or one decision
  summary  - Count events by type
  snapshot - Show the latest ledger snapshot
  memory   - Show decision memory derived from the log
  ledger   - Show the shadow ledger derived from the latest snapshot
  export   - Write the audit log as CSV

Examples:
  dreichor inspect events --tail 20
  dreichor inspect events --decision 6f1c...
  dreichor inspect summary
  dreichor inspect export -o audit.csv`,
}

var inspectEventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List audit events",
	Args:  cobra.NoArgs,
	RunE:  runInspectEvents,
}

var inspectSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count events by type",
	Args:  cobra.NoArgs,
	RunE:  runInspectSummary,
}

var inspectSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Show the latest ledger snapshot",
	Args:  cobra.NoArgs,
	RunE:  runInspectSnapshot,
}

var inspectMemoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show decision memory derived from the audit log",
	Args:  cobra.NoArgs,
	RunE:  runInspectMemory,
}

var inspectLedgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show the shadow ledger derived from the latest snapshot",
	Args:  cobra.NoArgs,
	RunE:  runInspectLedger,
}

var inspectExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the audit log as CSV",
	Args:  cobra.NoArgs,
	RunE:  runInspectExport,
}

var (
	inspectTail     int
	inspectDecision string
	inspectJSON     bool
	inspectOutput   string
)

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.AddCommand(inspectEventsCmd)
	inspectCmd.AddCommand(inspectSummaryCmd)
	inspectCmd.AddCommand(inspectSnapshotCmd)
	inspectCmd.AddCommand(inspectMemoryCmd)
	inspectCmd.AddCommand(inspectLedgerCmd)
	inspectCmd.AddCommand(inspectExportCmd)

	inspectEventsCmd.Flags().IntVarP(&inspectTail, "tail", "n", 0, "only the last N events (0 for all)")
	inspectEventsCmd.Flags().StringVar(&inspectDecision, "decision", "", "only events of this decision id")
	inspectEventsCmd.Flags().BoolVar(&inspectJSON, "json", false, "print events as JSON lines")
	inspectExportCmd.Flags().StringVarP(&inspectOutput, "output", "o", "audit_events.csv", "CSV output path")
}

// withStores loads the config, opens its stores and calls fn.
func withStores(fn func(ctx context.Context, cfg *config.Config, st *stores) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(context.Background(), cfg, st)
}

type decisionQuerier interface {
	EventsForDecision(ctx context.Context, decision string) ([]journal.Event, error)
}

// eventsForDecision uses the store's index when it has one and filters the
// full log otherwise.
func eventsForDecision(ctx context.Context, events journal.EventStore, decision string) ([]journal.Event, error) {
	if q, ok := events.(decisionQuerier); ok {
		return q.EventsForDecision(ctx, decision)
	}
	all, err := events.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []journal.Event
	for _, e := range all {
		if ref, ok := journal.DecisionRef(e); ok && string(ref) == decision {
			out = append(out, e)
		}
	}
	return out, nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeEvents(w io.Writer, events []journal.Event, asJSON bool) error {
	for _, e := range events {
		if !asJSON {
			h := e.Base()
			fmt.Fprintf(w, "t=%-6s %-27s %s %s\n", h.LogicalTime, h.Type, h.ID, journal.Describe(e))
			continue
		}
		line, err := journal.EncodeEvent(e)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(line))
	}
	return nil
}

func runInspectEvents(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, _ *config.Config, st *stores) error {
		var (
			events []journal.Event
			err    error
		)
		if inspectDecision != "" {
			events, err = eventsForDecision(ctx, st.events, inspectDecision)
		} else {
			events, err = st.events.ReadAll(ctx)
		}
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		return writeEvents(os.Stdout, replay.Tail(events, inspectTail), inspectJSON)
	})
}

func runInspectSummary(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, _ *config.Config, st *stores) error {
		events, err := st.events.ReadAll(ctx)
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		return writeJSON(os.Stdout, replay.Summarize(events))
	})
}

func runInspectSnapshot(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, _ *config.Config, st *stores) error {
		snap, ok, err := st.snaps.ReadLatest(ctx)
		if err != nil {
			return fmt.Errorf("read snapshot: %w", err)
		}
		if !ok {
			fmt.Println("null")
			return nil
		}
		return writeJSON(os.Stdout, snap)
	})
}

func runInspectMemory(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, _ *config.Config, st *stores) error {
		mem, err := replay.Memory(ctx, st.events)
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, mem.Sorted())
	})
}

func runInspectLedger(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, cfg *config.Config, st *stores) error {
		l, err := replay.Ledger(ctx, st.snaps, cfg.Plane())
		if err != nil {
			return err
		}
		return writeJSON(os.Stdout, l)
	})
}

func runInspectExport(cmd *cobra.Command, args []string) error {
	return withStores(func(ctx context.Context, _ *config.Config, st *stores) error {
		events, err := st.events.ReadAll(ctx)
		if err != nil {
			return fmt.Errorf("read events: %w", err)
		}
		x, err := journal.NewCSV(inspectOutput)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := x.Record(e); err != nil {
				x.Close()
				return err
			}
		}
		if err := x.Close(); err != nil {
			return err
		}
		fmt.Printf("✓ Exported %d events to %s\n", len(events), inspectOutput)
		return nil
	})
}
