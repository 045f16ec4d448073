// Command schedctl is the kitchen scheduler's operator CLI: load a
// scenario fixture, run the heuristic or optimizer engine (or both, with
// fallback), and print the resulting assignments and violations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/forextrader4711/kitchen-scheduler/internal/logging"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/engine"
	"github.com/forextrader4711/kitchen-scheduler/pkg/kitchen/model"
)

// App holds the CLI's shared dependencies, built once in PersistentPreRunE.
type App struct {
	logger *zap.Logger
	engine *engine.Engine
}

var (
	env string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "schedctl",
		Short: "Kitchen scheduler CLI - generate and inspect monthly schedules",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.logger != nil {
				app.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "dev", "Environment (used for log file naming)")

	rootCmd.AddCommand(runHeuristicCmd())
	rootCmd.AddCommand(runOptimizerCmd())
	rootCmd.AddCommand(orchestrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initApp() error {
	logger, err := logging.InitLogger(env)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app = &App{
		logger: logger,
		engine: engine.New(logger),
	}
	return nil
}

func runHeuristicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-heuristic <scenario.yaml>",
		Short: "Run the heuristic engine against a scenario fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			result := app.engine.RunHeuristic(ctx)
			printResult(result)
			return nil
		},
	}
	return cmd
}

func runOptimizerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run-optimizer <scenario.yaml>",
		Short: "Run the optimizer engine alone (no heuristic fallback)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			result := app.engine.RunOptimizer(ctx)
			printResult(result)
			return nil
		},
	}
	return cmd
}

func orchestrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run the optimizer, falling back to the heuristic on failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := loadScenario(args[0])
			if err != nil {
				return err
			}
			result := app.engine.Orchestrate(ctx)
			printResult(result)
			return nil
		},
	}
	return cmd
}

func printResult(result model.SchedulingResult) {
	fmt.Printf("\nrun %s - engine=%s status=%s duration=%dms\n\n", result.RunID, result.Engine, result.Status, result.DurationMS)

	fmt.Printf("assignments (%d):\n", len(result.Entries))
	for _, e := range result.Entries {
		switch {
		case e.ShiftCode != nil:
			fmt.Printf("  %s  resource=%-4d shift=%d%s\n", e.Date.Format("2006-01-02"), e.ResourceID, *e.ShiftCode, e.Comment)
		case e.AbsenceType != nil:
			fmt.Printf("  %s  resource=%-4d absence=%s\n", e.Date.Format("2006-01-02"), e.ResourceID, *e.AbsenceType)
		default:
			fmt.Printf("  %s  resource=%-4d rest\n", e.Date.Format("2006-01-02"), e.ResourceID)
		}
	}

	fmt.Printf("\nviolations (%d):\n", len(result.Violations))
	for _, v := range result.Violations {
		fmt.Printf("  [%s/%s] %s: %s\n", v.Severity, v.Scope, v.Code, v.Message)
	}
	fmt.Println()
}
