package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/taskmesh/config"
	"github.com/hupe1980/taskmesh/internal/bootstrap"
)

var (
	runTimeout time.Duration
	runBackend string
	runMaxHops int
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Submit a single task and print the result",
	Long: `Start the channel, the control plane and every configured worker,
submit the task, print the result and shut everything down again.

The orchestrator picks one worker per hop. With --max-hops above 1 and the
model strategy, the routing model may hand the result to further workers
before finishing.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTask,
}

func init() {
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 2*time.Minute, "Upper bound for the whole run")
	runCmd.Flags().StringVar(&runBackend, "backend", "", "Override the channel backend: memory, redis or rabbitmq")
	runCmd.Flags().IntVar(&runMaxHops, "max-hops", 0, "Override the maximum number of worker hops")
}

func runTask(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if runBackend != "" {
		cfg.Channel.Backend = runBackend
	}
	if runMaxHops > 0 {
		cfg.Orchestrator.MaxHops = runMaxHops
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, runTimeout)
		defer cancel()
	}

	return launch(ctx, cfg, strings.Join(args, " "), cmd.OutOrStdout())
}

func launch(ctx context.Context, cfg *config.Config, text string, out io.Writer) error {
	rt, err := bootstrap.Build(cfg, nil)
	if err != nil {
		return err
	}
	result, err := rt.Launcher().LaunchSingle(ctx, text)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, result)
	return nil
}
