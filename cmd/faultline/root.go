package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "faultline",
	Short: "Faultline - fault injection control server",
	Long: `Faultline is a fault-injection control server for testing failure
handling in other systems.

It keeps a registry of fault rules matched against checkpoint keys and
provides:
  - Error, delay, block, and kill fault behaviors
  - Declarative YAML fault plans with live reload
  - An admin HTTP API for registering faults and releasing blocked calls
  - Fault event history with configurable retention
  - Prometheus metrics`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
