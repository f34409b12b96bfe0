package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ceerkle/dreichor-trading/internal/metrics"
	"github.com/ceerkle/dreichor-trading/scenario"
	"github.com/ceerkle/dreichor-trading/strategy"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a tick script against the configured instance",
	Long: `Drive the configured strategy instance through a CSV tick script.

The script has the columns time,market,attention,gates,reasons,feedback.
Before the first tick the decision memory and shadow ledger are restored
from the configured persistence. An open position resumes in HOLDING from
the latest snapshot; any other lifecycle state restarts in IDLE.

Examples:
  dreichor run -c dreichor.yaml -s ticks.csv
  dreichor run -c dreichor.yaml -s ticks.csv --fresh`,
	RunE: runRun,
}

var (
	runScriptPath string
	runFresh      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runScriptPath, "script", "s", "", "CSV tick script (required)")
	runCmd.Flags().BoolVar(&runFresh, "fresh", false, "skip restoring state from persistence")
	runCmd.MarkFlagRequired("script")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rows, err := scenario.LoadCSV(runScriptPath)
	if err != nil {
		return fmt.Errorf("load script: %w", err)
	}

	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	rec := metrics.New()
	runner, err := newRunner(cfg, st, rec)
	if err != nil {
		return err
	}

	if !runFresh {
		restored, err := runner.Restore(ctx, st.events, st.snaps)
		if err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		fmt.Printf("Restored %d events, %d decisions\n", restored.Events, len(restored.Memory.Entries))
	}

	fmt.Printf("Running %d ticks from: %s\n", len(rows), runScriptPath)
	steps, runErr := runner.Run(ctx, rows)
	for _, s := range steps {
		fmt.Println(formatStep(s))
	}

	if cfg.Metrics.Textfile != "" {
		if err := rec.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if runErr != nil {
		return fmt.Errorf("tick %d of %d: %w", len(steps)+1, len(rows), runErr)
	}

	open, err := runner.Ledger.OpenQuantity()
	if err != nil {
		return fmt.Errorf("open exposure: %w", err)
	}

	fmt.Printf("\n✓ Ran %d ticks\n", len(steps))
	fmt.Printf("  Lifecycle: %s\n", runner.Lifecycle.State.Tag())
	fmt.Printf("  Open exposure: %s\n", open.String())
	fmt.Printf("  Decisions remembered: %d\n", len(runner.Memory.Entries))
	return nil
}

// formatStep renders one step as a single line.
func formatStep(s scenario.Step) string {
	res := s.Result
	var b strings.Builder
	fmt.Fprintf(&b, "t=%-6s %-19s -> %-19s", s.Row.Time, s.Before, s.After)

	switch p := res.Proposal.(type) {
	case strategy.Intent:
		fmt.Fprintf(&b, " %s %s", p.OrderIntent.Side, p.OrderIntent.MarketID)
	case strategy.NoIntent:
		fmt.Fprintf(&b, " skip=%s", p.Reason)
	}
	fmt.Fprintf(&b, " safety=%s", res.Verdict.Type)
	if res.Outcome != nil {
		fmt.Fprintf(&b, " exec=%s", res.Outcome.Status)
	}
	if res.Feedback != nil {
		fmt.Fprintf(&b, " feedback=%s", res.Feedback.Category)
	}
	return b.String()
}
