package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "seqctl",
	Short: "Inspect and repair bizdesk identifier sequences",
	Long: `seqctl talks to the bizdesk database using the same environment
configuration as the server (PG_DSN, REDIS_ADDR, SEQUENCE_BACKEND, ...).

Examples:
  # Show every counter
  seqctl show

  # Realign the purchases counter with the highest stored PUR- number
  seqctl reseed purchases

  # Create missing tables
  seqctl migrate`,
	SilenceUsage: true,
}

var format string

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", "table", "Output format: table|yaml")
	rootCmd.AddCommand(showCmd, reseedCmd, scopesCmd, migrateCmd, reconcileCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
