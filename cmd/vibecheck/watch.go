package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ryosukesatoh/vibecheck/internal/metrics"
)

func newWatchCmd(a *app) *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the pipeline for the configured keywords on a cron schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if err := cfg.ValidateWatch(); err != nil {
				return err
			}

			pubs, err := buildPublishers(cfg)
			if err != nil {
				return err
			}
			r, err := buildRunner(cfg, a.log, metrics.New(), pubs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Single-run mode: run every keyword once and exit
			if once {
				a.log.Info("Running vibe checks (once mode)...")
				return r.RunAll(ctx, cfg.Watch.Keywords)
			}

			if cfg.Watch.RunOnStart {
				a.log.Info("Running initial vibe checks...")
				if err := r.RunAll(ctx, cfg.Watch.Keywords); err != nil {
					a.log.WithError(err).Warn("Initial run failed")
				}
			}

			c := cron.New()
			if _, err := c.AddFunc(cfg.Watch.Schedule, func() {
				a.log.Info("Cron triggered, running vibe checks...")
				if err := r.RunAll(ctx, cfg.Watch.Keywords); err != nil {
					a.log.WithError(err).Warn("Scheduled run failed")
				}
			}); err != nil {
				return fmt.Errorf("invalid cron schedule %q: %w", cfg.Watch.Schedule, err)
			}
			c.Start()
			a.log.WithField("schedule", cfg.Watch.Schedule).Info("Scheduled vibe checks")

			<-ctx.Done()
			a.log.Info("Received shutdown signal, waiting for running jobs...")
			<-c.Stop().Done()
			a.log.Info("Shutdown complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run every keyword once and exit")
	return cmd
}
