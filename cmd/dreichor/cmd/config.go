package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ceerkle/dreichor-trading/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate configuration files",
	Long: `Manage configuration files for a strategy instance.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  dreichor config init -o dreichor.yaml
  dreichor config validate -f dreichor.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default configuration file",
	Long: `Create a new configuration file with default settings.

Example:
  dreichor config init -o dreichor.yaml`,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Check if a configuration file is valid and can be loaded.

Example:
  dreichor config validate -f dreichor.yaml`,
	RunE: runConfigValidate,
}

var (
	configInitOutput   string
	configValidatePath string
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", "dreichor.yaml", "output config file path")
	configValidateCmd.Flags().StringVarP(&configValidatePath, "file", "f", "", "path to config file (required)")
	configValidateCmd.MarkFlagRequired("file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if err := cfg.SaveToFile(configInitOutput); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Printf("✓ Created default configuration: %s\n", configInitOutput)
	fmt.Println("\nEdit the file and run with:")
	fmt.Printf("  dreichor run -c %s -s ticks.csv\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(configValidatePath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	sel, err := cfg.SelectPool()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Printf("✓ Configuration valid: %s\n", configValidatePath)
	fmt.Printf("  Instance: %s (%s)\n", cfg.Strategy.InstanceID, cfg.Strategy.StrategyID)
	fmt.Printf("  Decision class: %s\n", cfg.Strategy.DecisionClass)
	fmt.Printf("  Lifecycle: hold %d, cooldown %d\n", cfg.Strategy.MinimumHoldTime, cfg.Strategy.CooldownDuration)
	fmt.Printf("  Parameter pool: %s\n", sel.Pool.ID)
	if sel.RejectionReason != "" {
		fmt.Printf("  (requested %s rejected: %s)\n", sel.RejectedPoolID, sel.RejectionReason)
	}
	fmt.Printf("  Plane: %s\n", cfg.Execution.Plane)
	fmt.Printf("  Persistence: %s\n", cfg.Persistence.Type)
	return nil
}
