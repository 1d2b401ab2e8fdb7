// Command gridctl runs the microgrid dispatch controller: a fixed-cadence
// tick loop that reads telemetry from a hardware endpoint, forecasts
// demand, solves a cost-minimizing supply assignment, and dispatches
// commands back over the same link.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gridctl",
	Short: "Real-time microgrid dispatch controller",
	Long: `gridctl drives a fixed-cadence dispatch loop for a small microgrid:
it consumes telemetry from a hardware endpoint, forecasts near-term demand,
solves a cost-minimizing source assignment under capacity and ramp
constraints, and sends the result back over the same link.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "gridctl.toml", "path to the TOML configuration file")
}

// Execute runs the root command, exiting the process with a nonzero
// status on any unrecoverable error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
