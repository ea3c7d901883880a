package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/technerv/election-monitor/internal/app"
	"github.com/technerv/election-monitor/internal/platform/config"
	"github.com/technerv/election-monitor/internal/platform/logger"
	reconcileservice "github.com/technerv/election-monitor/internal/reconcile/service"
	"github.com/technerv/election-monitor/internal/reconcile/source"
	"github.com/technerv/election-monitor/pkg/domain"
)

type rootOptions struct {
	configPath string
	json       bool
}

type syncOptions struct {
	electionID   int64
	allElections bool
	resultsOnly  bool
	live         bool
}

// toRequest applies the same rules as POST /admin/sync.
func (o syncOptions) toRequest() (reconcileservice.Request, error) {
	req := reconcileservice.Request{
		AllElections: o.allElections,
		ResultsOnly:  o.resultsOnly,
		Live:         o.live,
	}
	if o.electionID < 0 {
		return req, errors.New("--election-id must be positive")
	}
	if o.electionID > 0 {
		if o.live {
			return req, errors.New("--live cannot be combined with --election-id")
		}
		id := domain.ElectionID(o.electionID)
		req.ElectionID = &id
	}
	return req, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "syncctl",
		Short:         "Run election result reconciliation by hand",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("ELECTION_CONFIG_FILE"), "path to a config file")
	root.PersistentFlags().BoolVar(&opts.json, "json", false, "print JSON instead of a table")

	root.AddCommand(newSyncCmd(opts), newAnnouncementsCmd(opts), newArchiveCmd(opts), newFormsCmd(opts))
	return root
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	var so syncOptions
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile official results into the store",
		Long: `Reconcile official results into the store.

syncctl runs in its own process. Result changes it writes are not pushed to
WebSocket clients of a running server; they reach the Kafka mirror when
kafka.brokers is configured. To notify live viewers, trigger the run through
the server with POST /admin/sync instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := so.toRequest()
			if err != nil {
				return err
			}
			return withSynchronizer(cmd.Context(), opts, func(ctx context.Context, sync *reconcileservice.Synchronizer, _ *source.Portal) error {
				sum := sync.Run(ctx, req)
				if err := printSummary(cmd.OutOrStdout(), sum, time.Now(), opts.json); err != nil {
					return err
				}
				if sum.Status == reconcileservice.StatusCancelled {
					return context.Canceled
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&so.electionID, "election-id", 0, "reconcile a single election")
	cmd.Flags().BoolVar(&so.allElections, "all-elections", false, "reconcile every active election")
	cmd.Flags().BoolVar(&so.resultsOnly, "results-only", false, "skip the announcement check")
	cmd.Flags().BoolVar(&so.live, "live", false, "reconcile only elections around today")
	return cmd
}

func newAnnouncementsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "announcements",
		Short: "Discover newly announced elections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSynchronizer(cmd.Context(), opts, func(ctx context.Context, sync *reconcileservice.Synchronizer, _ *source.Portal) error {
				return printSummary(cmd.OutOrStdout(), sync.CheckAnnouncements(ctx), time.Now(), opts.json)
			})
		},
	}
}

func newArchiveCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Deactivate elections older than sync.archive_after",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSynchronizer(cmd.Context(), opts, func(ctx context.Context, sync *reconcileservice.Synchronizer, _ *source.Portal) error {
				n, err := sync.Archive(ctx, time.Now())
				if err != nil {
					return err
				}
				return printArchived(cmd.OutOrStdout(), n, opts.json)
			})
		},
	}
}

func newFormsCmd(opts *rootOptions) *cobra.Command {
	var formType, electionID string
	cmd := &cobra.Command{
		Use:   "forms",
		Short: "List published result forms",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSynchronizer(cmd.Context(), opts, func(ctx context.Context, _ *reconcileservice.Synchronizer, portal *source.Portal) error {
				forms, err := portal.FetchForms(ctx, formType, electionID)
				if err != nil {
					return err
				}
				return printForms(cmd.OutOrStdout(), forms, opts.json)
			})
		},
	}
	cmd.Flags().StringVar(&formType, "form", "", "form type, e.g. 34A")
	cmd.Flags().StringVar(&electionID, "election", "", "election id on the forms portal")
	return cmd
}

// withSynchronizer opens the configured stores for the duration of fn.
// Result events go through a hub with no subscribers, so they only reach the
// Kafka mirror when one is configured.
func withSynchronizer(ctx context.Context, opts *rootOptions,
	fn func(context.Context, *reconcileservice.Synchronizer, *source.Portal) error,
) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(os.Stderr, cfg.Logging)
	slog.SetDefault(log)

	stores, err := app.OpenStores(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	locker, closeLocker, err := app.OpenLocker(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	hub, closeSink, err := app.NewHub(ctx, cfg, log, nil)
	if err != nil {
		return err
	}
	defer func() {
		hub.Stop()
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		closeSink(closeCtx)
	}()

	sync, portal, err := app.NewSynchronizer(cfg, stores.Elections, hub, locker, log, nil)
	if err != nil {
		return err
	}
	return fn(ctx, sync, portal)
}
