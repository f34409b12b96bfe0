package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceerkle/dreichor-trading/replay"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Rebuild decision memory and the shadow ledger from disk",
	Long: `Replay the persisted audit log into decision memory and load the
shadow ledger from the latest snapshot. Nothing is written.

Examples:
  dreichor replay -c dreichor.yaml`,
	Args: cobra.NoArgs,
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	restored, err := replay.Restore(ctx, st.events, st.snaps, cfg.Plane())
	if err != nil {
		return fmt.Errorf("replay error: %w", err)
	}

	fmt.Printf("✓ Replayed %d events\n", restored.Events)
	if restored.Snapshot != nil {
		fmt.Printf("  Snapshot: %s at t=%s\n", restored.Snapshot.SnapshotID, restored.Snapshot.LogicalTime)
	} else {
		fmt.Println("  Snapshot: none")
	}

	fmt.Printf("\nDecisions (%d):\n", len(restored.Memory.Entries))
	for _, e := range restored.Memory.Sorted() {
		fmt.Printf("  %s t=%-6s exec=%d/%d filled safety=%d/%d blocked feedback=%d\n",
			e.DecisionID, e.FirstSeen,
			e.Execution.Filled, e.Execution.Observed,
			e.Safety.Blocked, e.Safety.Observed,
			e.Feedback.Count)
	}

	fmt.Printf("\nLedger (%s):\n", restored.Ledger.Plane)
	for _, id := range restored.Ledger.MarketIDs() {
		p := restored.Ledger.Positions[id]
		state := "closed"
		if p.IsOpen {
			state = "open"
		}
		fmt.Printf("  %-12s %-6s qty=%s last=%s\n", id, state, p.Quantity, p.LastExecutionID)
	}
	open, err := restored.Ledger.OpenQuantity()
	if err != nil {
		return fmt.Errorf("open exposure: %w", err)
	}
	fmt.Printf("  Open exposure: %s\n", open.String())
	return nil
}
