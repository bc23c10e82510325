package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	verbose bool
	jsonLog bool
	version = "dev" // Will be set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "popsim",
	Short: "Synthetic patient population simulator",
	Long: `Popsim advances a population of synthetic patients along a simulated
timeline, firing stochastic state-machine transitions whose rates depend on
patient state, applying their side effects, and recording a strictly ordered
event log.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "write logs as JSON instead of console format")

	rootCmd.AddCommand(simulateCmd)
}

// Commands are defined in separate files:
// - simulateCmd in simulate.go

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
