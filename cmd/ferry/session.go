package main

import (
	"context"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/ferry/internal/config"
	"github.com/yairfalse/ferry/internal/fault"
	"github.com/yairfalse/ferry/internal/manager"
	"github.com/yairfalse/ferry/internal/provider/aws"
	"github.com/yairfalse/ferry/internal/telemetry"
	"github.com/yairfalse/ferry/internal/workflow"
)

const shutdownTimeout = 5 * time.Second

// session is everything a command needs once bootstrap succeeded.
type session struct {
	runner *workflow.Runner
}

// withSession bootstraps logging, telemetry and the AWS clients, runs fn, and
// flushes telemetry afterwards. Bootstrap failures are fatal.
func withSession(cmd *cobra.Command, cfg *config.Config, fn func(*session) error) error {
	if err := telemetry.SetupLogging(cfg.Log.Level, opts.debug); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tel, err := telemetry.NewProvider(ctx, cfg.OTEL)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer closeTelemetry(tel, cfg.OTEL.Metrics.Textfile)

	provider, err := aws.New(ctx, aws.Config{
		Region:  cfg.AWS.Region,
		Profile: cfg.AWS.Profile,
		Retry:   cfg.RetryPolicy(),
	})
	if err != nil {
		fault.Annotate(log.Error(), err).Str("region", cfg.AWS.Region).Msg("bootstrap failed")
		return fmt.Errorf("bootstrap: %w", err)
	}

	selector := manager.Selector{Key: cfg.Manager.TagKey, Value: cfg.Manager.TagValue}
	policy := manager.NewPolicy(provider, selector, cfg.Manager.DryRun)

	return fn(&session{
		runner: workflow.NewRunner(provider, policy, tel, cmd.OutOrStdout()),
	})
}

func closeTelemetry(tel *telemetry.Provider, textfile string) {
	if textfile != "" {
		if err := tel.WriteTextfile(textfile); err != nil {
			log.Warn().Err(err).Str("path", textfile).Msg("metrics not written")
		} else {
			log.Debug().Str("path", textfile).Msg("metrics written")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("telemetry shutdown")
	}
}

// runGroup runs fn next to a signal handler. SIGINT or SIGTERM cancels the
// context fn runs under; the first actor to return decides the result.
func runGroup(ctx context.Context, fn func(context.Context) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g run.Group
	g.Add(func() error {
		return fn(ctx)
	}, func(error) {
		cancel()
	})
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	return g.Run()
}
