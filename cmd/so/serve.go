package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/atelierhq/studioops/internal/accounting"
	"github.com/atelierhq/studioops/internal/dashboard"
	"github.com/atelierhq/studioops/internal/db"
	"github.com/atelierhq/studioops/internal/logging"
	"github.com/atelierhq/studioops/internal/models"
	"github.com/atelierhq/studioops/internal/monday"
	"github.com/atelierhq/studioops/internal/notify"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard server",
		Long: `Serves the StudioOps dashboard API and, when sync.schedule is set,
runs the Monday sync on that schedule. Manual syncs can be triggered from
the dashboard; progress streams to connected clients over SSE.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StudioOps config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
	return cmd
}

// scheduledSyncOptions builds the options for cron-triggered runs. Like
// manual dashboard triggers, scheduled runs keep orphans; pruning stays an
// explicit operator action.
func scheduledSyncOptions() monday.Options {
	return monday.Options{
		Trigger:     "scheduled",
		KeepOrphans: true,
	}
}

func runServe(cmd *cobra.Command, configPath string, port int, debug bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	notifier := buildNotifier(cfg, log)

	// The hub serializes manual and scheduled triggers and fans progress out
	// to SSE subscribers.
	var hub *dashboard.Hub
	hub = dashboard.NewHub(func(ctx context.Context, opts monday.Options) error {
		syncer, err := buildSyncer(cfg, gormDB, log, hub.Progress)
		if err != nil {
			return err
		}
		run, err := syncer.Run(ctx, opts)
		if run != nil && notifier != nil {
			if nerr := notifier.Send(ctx, notify.SyncMessage(run)); nerr != nil {
				log.Warn("sync notification failed", zap.Error(nerr))
			}
		}
		return err
	}, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if sched, err := cfg.CronSchedule(); err != nil {
		return err
	} else if sched != nil {
		c := cron.New()
		c.Schedule(sched, cron.FuncJob(func() {
			err := hub.Trigger(scheduledSyncOptions())
			if err == dashboard.ErrSyncRunning {
				log.Warn("scheduled sync skipped, previous run still in flight")
			} else if err != nil {
				log.Error("scheduled sync failed to start", zap.Error(err))
			}
		}))
		c.Start()
		defer c.Stop()
		log.Info("scheduled sync enabled", zap.String("schedule", cfg.Sync.Schedule))
	}

	var acct *accounting.Client
	if cfg.Accounting.BaseURL != "" {
		token, err := db.GetSetting(gormDB, models.SettingAccountingToken)
		if err != nil {
			return err
		}
		if token == "" {
			log.Warn("no accounting token stored, forecast runs without invoice data")
		} else {
			acct, err = accounting.NewClient(accounting.ClientOpts{
				BaseURL:  cfg.Accounting.BaseURL,
				TenantID: cfg.Accounting.TenantID,
				Token:    token,
			})
			if err != nil {
				return err
			}
		}
	}

	if port <= 0 {
		port = cfg.Server.Port
	}
	return dashboard.Start(ctx, dashboard.StartOpts{
		DB:         gormDB,
		Port:       port,
		Hub:        hub,
		Accounting: acct,
		Logger:     log,
		Out:        cmd.OutOrStdout(),
	})
}
