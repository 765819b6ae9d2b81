package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/atelierhq/studioops/internal/config"
	"github.com/atelierhq/studioops/internal/db"
	"github.com/atelierhq/studioops/internal/logging"
	"github.com/atelierhq/studioops/internal/models"
	"github.com/atelierhq/studioops/internal/monday"
	"github.com/atelierhq/studioops/internal/notify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newSyncCmd() *cobra.Command {
	var (
		configPath string
		full       bool
		prune      bool
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync projects and tasks from Monday.com",
		Long: `Runs one sync pass: fetches board items, reconciles projects and
tasks into the local mirror, and optionally sweeps orphaned projects.

Locked projects keep their recorded budget data; the sweep never touches
them. Without --prune, projects that vanished remotely are left in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, configPath, full, prune, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to StudioOps config file")
	cmd.Flags().BoolVar(&full, "full", false, "paginate every board, including completed boards")
	cmd.Flags().BoolVar(&prune, "prune", false, "remove projects that no longer exist on Monday")
	cmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
	return cmd
}

func runSync(cmd *cobra.Command, configPath string, full, prune, debug bool) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(debug)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer log.Sync()

	syncer, err := buildSyncer(cfg, gormDB, log, progressPrinter(out))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, err := syncer.Run(ctx, monday.Options{
		Trigger:     "manual",
		Full:        full,
		KeepOrphans: !prune,
	})

	if run != nil {
		if notifier := buildNotifier(cfg, log); notifier != nil {
			if nerr := notifier.Send(context.Background(), notify.SyncMessage(run)); nerr != nil {
				log.Warn("sync notification failed", zap.Error(nerr))
			}
		}
	}
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}

	fmt.Fprintf(out, "Synced %d projects, %d tasks", run.ProjectsSynced, run.TasksSynced)
	if run.ProjectsRemoved > 0 {
		fmt.Fprintf(out, ", removed %d orphans", run.ProjectsRemoved)
	}
	fmt.Fprintln(out)
	return nil
}

// buildSyncer wires a Monday API client and Syncer from config and the
// stored API token.
func buildSyncer(cfg *config.Config, gormDB *gorm.DB, log *zap.Logger, progress monday.ProgressFunc) (*monday.Syncer, error) {
	token, err := db.GetSetting(gormDB, models.SettingMondayToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("no Monday token stored — run \"so token monday\" first")
	}

	client, err := monday.NewClient(monday.ClientOpts{
		APIURL:      cfg.Monday.APIURL,
		Token:       token,
		PageSize:    cfg.Monday.PageSize,
		IDBatchSize: cfg.Monday.IDBatchSize,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}

	return monday.NewSyncer(monday.SyncerOpts{
		DB:            gormDB,
		API:           client,
		FamilyKeyword: cfg.Monday.FamilyKeyword,
		Logger:        log,
		Progress:      progress,
	})
}

// buildNotifier assembles the configured chat senders, or nil when none are
// configured.
func buildNotifier(cfg *config.Config, log *zap.Logger) *notify.Multi {
	var senders []notify.Sender

	if cfg.Notify.SlackToken != "" {
		s, err := notify.NewSlack(notify.SlackOpts{
			BotToken:  cfg.Notify.SlackToken,
			ChannelID: cfg.Notify.SlackChannel,
		})
		if err != nil {
			log.Warn("slack notifications disabled", zap.Error(err))
		} else {
			senders = append(senders, s)
		}
	}
	if cfg.Notify.DiscordToken != "" {
		d, err := notify.NewDiscord(notify.DiscordOpts{
			BotToken:  cfg.Notify.DiscordToken,
			ChannelID: cfg.Notify.DiscordChannel,
		})
		if err != nil {
			log.Warn("discord notifications disabled", zap.Error(err))
		} else {
			senders = append(senders, d)
		}
	}

	if len(senders) == 0 {
		return nil
	}
	return notify.NewMulti(log, senders...)
}

// progressPrinter renders sync progress events as console lines.
func progressPrinter(out io.Writer) monday.ProgressFunc {
	return func(evt monday.Event) {
		switch evt.Phase {
		case monday.PhaseFetching:
			fmt.Fprintf(out, "Fetching: %s\n", evt.Message)
		case monday.PhaseChecking:
			fmt.Fprintf(out, "Checking %d items\n", evt.Total)
		case monday.PhaseSyncing:
			fmt.Fprintf(out, "  [%d/%d] %s\n", evt.Index, evt.Total, evt.Project)
		case monday.PhaseComplete:
			fmt.Fprintf(out, "Done: %d projects, %d tasks, %d removed\n",
				evt.Projects, evt.Tasks, evt.Removed)
		case monday.PhaseError:
			fmt.Fprintf(out, "Error: %s\n", evt.Message)
		}
	}
}
