// Package service runs reconciliation: it pulls official results through the
// source chain, matches them to registered candidates, upserts them and
// announces every change on the fan-out hub.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/reconcile/lease"
	syncmetrics "github.com/technerv/election-monitor/internal/reconcile/metrics"
	"github.com/technerv/election-monitor/internal/reconcile/source"
	"github.com/technerv/election-monitor/pkg/domain"
)

// Store is the slice of the election store reconciliation needs.
type Store interface {
	CreateElection(ctx context.Context, e *models.Election) error
	FindElection(ctx context.Context, id domain.ElectionID) (*models.Election, error)
	FindElectionByName(ctx context.Context, name string) (*models.Election, error)
	ListElections(ctx context.Context, filter models.ElectionFilter) ([]models.Election, error)
	UpdateElectionSource(ctx context.Context, id domain.ElectionID, sourceURL string, now time.Time) error
	ArchiveBefore(ctx context.Context, cutoff time.Time, now time.Time) (int, error)
	ListConstituencies(ctx context.Context) ([]models.Constituency, error)
	FindConstituencyByName(ctx context.Context, name string) (*models.Constituency, error)
	FirstStation(ctx context.Context, constituencyID domain.ConstituencyID) (*models.PollingStation, error)
	CandidatesByElection(ctx context.Context, electionID domain.ElectionID) ([]models.Candidate, error)
	UpsertResult(ctx context.Context, r *models.Result) (models.UpsertOutcome, error)
	CountVerifiedResults(ctx context.Context, electionID domain.ElectionID) (int, error)
}

// ResultSource is the strategy chain.
type ResultSource interface {
	Fetch(ctx context.Context, target source.Target) (source.Outcome, error)
}

type AnnouncementSource interface {
	FetchAnnouncements(ctx context.Context) ([]source.Announcement, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev fanout.Event) error
}

const (
	defaultLeaseTTL      = 15 * time.Minute
	defaultMaxConcurrent = 2
	defaultArchiveAfter  = 730 * 24 * time.Hour

	liveLookback  = 7 * 24 * time.Hour
	liveLookahead = 24 * time.Hour
)

// Synchronizer reconciles official results into the election store. Runs
// for different elections proceed in parallel up to a limit; runs for the
// same election are serialized by a lease.
type Synchronizer struct {
	store         Store
	results       ResultSource
	announcements AnnouncementSource
	publisher     Publisher
	leases        lease.Locker

	leaseTTL      time.Duration
	maxConcurrent int
	archiveAfter  time.Duration

	logger  *slog.Logger
	metrics *syncmetrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Synchronizer)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Synchronizer) {
		s.logger = logger
	}
}

func WithMetrics(m *syncmetrics.Metrics) Option {
	return func(s *Synchronizer) {
		s.metrics = m
	}
}

// WithAnnouncements enables election discovery on default runs.
func WithAnnouncements(a AnnouncementSource) Option {
	return func(s *Synchronizer) {
		s.announcements = a
	}
}

// WithLocker replaces the in-process lease, typically with the Redis one.
func WithLocker(l lease.Locker) Option {
	return func(s *Synchronizer) {
		s.leases = l
	}
}

func WithLeaseTTL(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.leaseTTL = d
		}
	}
}

func WithMaxConcurrent(n int) Option {
	return func(s *Synchronizer) {
		if n > 0 {
			s.maxConcurrent = n
		}
	}
}

func WithArchiveAfter(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d > 0 {
			s.archiveAfter = d
		}
	}
}

func New(store Store, results ResultSource, publisher Publisher, opts ...Option) (*Synchronizer, error) {
	if store == nil {
		return nil, errors.New("election store is required")
	}
	if results == nil {
		return nil, errors.New("result source is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	s := &Synchronizer{
		store:         store,
		results:       results,
		publisher:     publisher,
		leases:        lease.NewInMemory(),
		leaseTTL:      defaultLeaseTTL,
		maxConcurrent: defaultMaxConcurrent,
		archiveAfter:  defaultArchiveAfter,
		logger:        slog.Default(),
		tracer:        otel.Tracer("github.com/technerv/election-monitor/internal/reconcile/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}
