package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "taskmesh",
	Short: "Multi-worker task orchestration",
	Long: `taskmesh routes a task to the best suited worker over a message
channel and prints the worker's answer.

Workers, the channel backend (memory, redis or rabbitmq) and the routing
strategy come from a YAML file given with --config. Without a file the
built-in secret fact scenario runs on the in-memory channel.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("error:"), err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the YAML configuration")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config or falls back to the built-in default.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		cfg.ApplyEnv(os.Getenv)
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}
