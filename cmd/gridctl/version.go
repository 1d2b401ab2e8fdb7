package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set by the release build via -ldflags; "dev" covers local
// builds and go run invocations.
var version = "dev"

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gridctl version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stdout, "gridctl %s\n", version)
		return nil
	},
}
