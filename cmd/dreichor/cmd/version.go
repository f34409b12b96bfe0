package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the dreichor CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("dreichor version %s\n", version)
		fmt.Println("A deterministic spot-trading strategy runner")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
