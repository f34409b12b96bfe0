package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dreichor",
	Short: "A deterministic spot-trading strategy runner",
	Long: `Dreichor drives a single strategy instance through logical-time ticks.

Every tick evaluates the lifecycle, proposes at most one order intent,
passes it through the safety gates, executes it on the configured plane
and records the audit trail. State can always be rebuilt from the
recorded events and ledger snapshots.

It provides tools for:
  - Running tick scripts against a configured instance
  - Restoring decision memory and the shadow ledger from disk
  - Inspecting and exporting the audit log`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if logLevel == "" {
			return nil
		}
		lvl, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logrus.SetLevel(lvl)
		return nil
	},
	SilenceUsage: true,
}

var (
	configPath string
	logLevel   string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dreichor.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
}
