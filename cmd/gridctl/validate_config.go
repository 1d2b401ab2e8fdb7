package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridctl/gridctl/internal/config"
)

func init() {
	rootCmd.AddCommand(validateConfigCmd)
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Parse and validate the configuration file without starting the controller",
	RunE:  runValidateConfig,
}

func runValidateConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("validate-config: %w", err)
	}

	fmt.Fprintf(os.Stdout, "%s is valid: %d source(s), tick_ms=%d, solve_budget_ms=%d\n",
		configPath, len(cfg.Sources), cfg.Tick.TickMs, cfg.Tick.SolveBudgetMs)
	for _, s := range cfg.SourceSpecs() {
		fmt.Fprintf(os.Stdout, "  source %d: capacity=%.2fA ramp=%.2fA/tick cost=%.4f green=%v\n",
			s.SourceID, s.MaxCapacity, s.RampLimit, s.CostPerAmp, s.Green)
	}
	return nil
}
