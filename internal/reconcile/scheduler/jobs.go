package scheduler

import (
	"context"
	"time"

	"github.com/technerv/election-monitor/internal/platform/config"
	"github.com/technerv/election-monitor/internal/reconcile/service"
)

const (
	JobLive          = "live_results"
	JobResults       = "official_results"
	JobAnnouncements = "announcements"
	JobArchive       = "archive"
)

// Runner is the synchronizer surface the jobs drive.
type Runner interface {
	Run(ctx context.Context, req service.Request) *service.Summary
	CheckAnnouncements(ctx context.Context) *service.Summary
	Archive(ctx context.Context, now time.Time) (int, error)
}

// SyncJobs builds the periodic reconciliation jobs from config. Summaries
// are logged by the synchronizer itself.
func SyncJobs(cfg config.SyncConfig, runner Runner) []Job {
	return []Job{
		{
			Name:     JobLive,
			Schedule: cfg.LiveSchedule,
			Run: func(ctx context.Context) error {
				runner.Run(ctx, service.Request{Live: true})
				return nil
			},
		},
		{
			Name:     JobResults,
			Schedule: cfg.ResultsSchedule,
			Run: func(ctx context.Context) error {
				runner.Run(ctx, service.Request{ResultsOnly: true})
				return nil
			},
		},
		{
			Name:     JobAnnouncements,
			Schedule: cfg.AnnounceSchedule,
			Run: func(ctx context.Context) error {
				runner.CheckAnnouncements(ctx)
				return nil
			},
		},
		{
			Name:     JobArchive,
			Schedule: cfg.ArchiveSchedule,
			Run: func(ctx context.Context) error {
				_, err := runner.Archive(ctx, time.Now())
				return err
			},
		},
	}
}
