package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	electionmodels "github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/internal/fanout"
	reportmetrics "github.com/technerv/election-monitor/internal/report/metrics"
	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/internal/report/store"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, r *models.Report) error
	FindByID(ctx context.Context, id domain.ReportID) (*models.Report, error)
	Update(ctx context.Context, id domain.ReportID, mutate store.MutateFunc) (*models.Report, *models.VerificationEvent, error)
	ListEvents(ctx context.Context, id domain.ReportID) ([]models.VerificationEvent, error)
	List(ctx context.Context, filter models.Filter) ([]*models.Report, error)
	Count(ctx context.Context, filter models.Filter) (int, error)
	CountByStatus(ctx context.Context, kind models.Kind) (map[models.Status]int, error)
}

// Publisher receives domain events after they are persisted.
type Publisher interface {
	Publish(ctx context.Context, ev fanout.Event) error
}

// ElectionLookup confirms a report references a known election and
// polling station.
type ElectionLookup interface {
	FindElection(ctx context.Context, id domain.ElectionID) (*electionmodels.Election, error)
	FindPollingStation(ctx context.Context, id domain.StationID) (*electionmodels.PollingStation, error)
}

const liveWindow = time.Hour

// Service owns the report lifecycle: submission, verification transitions
// and incident responses. Every successful write is followed by an explicit
// fan-out event.
type Service struct {
	reports   Store
	publisher Publisher
	elections ElectionLookup
	locks     *reportLocks
	logger    *slog.Logger
	metrics   *reportmetrics.Metrics
	tracer    trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *reportmetrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithElections enables election and station existence checks on submit.
func WithElections(elections ElectionLookup) Option {
	return func(s *Service) {
		s.elections = elections
	}
}

func New(reports Store, publisher Publisher, opts ...Option) (*Service, error) {
	if reports == nil {
		return nil, errors.New("report store is required")
	}
	if publisher == nil {
		return nil, errors.New("publisher is required")
	}
	s := &Service{
		reports:   reports,
		publisher: publisher,
		locks:     &reportLocks{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("github.com/technerv/election-monitor/internal/report/service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SubmitCommand carries a normalized submission. Exactly one payload is set,
// matching Kind.
type SubmitCommand struct {
	Kind             models.Kind
	ElectionID       domain.ElectionID
	PollingStationID *domain.StationID
	Anonymous        bool
	StationUpdate    *models.StationUpdate
	Incident         *models.Incident
}

// Submit stores a new pending report and announces it.
func (s *Service) Submit(ctx context.Context, principal domain.Principal, cmd SubmitCommand) (*models.Report, error) {
	now := requestcontext.Now(ctx)
	var submitter *string
	if !principal.IsAnonymous() {
		id := principal.ID
		submitter = &id
	}

	if err := s.checkReferences(ctx, cmd); err != nil {
		return nil, err
	}

	var (
		report *models.Report
		err    error
	)
	switch cmd.Kind {
	case models.KindStationUpdate:
		if cmd.StationUpdate == nil || cmd.PollingStationID == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "station update requires polling_station_id and station_update")
		}
		report, err = models.NewStationUpdate(domain.NewReportID(), cmd.ElectionID, *cmd.PollingStationID, *cmd.StationUpdate, submitter, now)
	case models.KindIncident:
		if cmd.Incident == nil {
			return nil, dErrors.New(dErrors.CodeValidation, "incident payload is required")
		}
		report, err = models.NewIncident(domain.NewReportID(), cmd.ElectionID, cmd.PollingStationID, *cmd.Incident, submitter, cmd.Anonymous, now)
	default:
		return nil, dErrors.New(dErrors.CodeValidation, "kind must be station_update or incident")
	}
	if err != nil {
		return nil, toValidation(err)
	}

	if err := s.reports.Create(ctx, report); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store report")
	}
	s.metrics.IncSubmitted(string(report.Kind))
	s.logger.InfoContext(ctx, "report submitted",
		"request_id", requestcontext.RequestID(ctx),
		"report_id", report.ID.String(),
		"kind", report.Kind,
		"election_id", report.ElectionID,
	)
	s.publish(ctx, fanout.EventReportCreated, report, report)
	return report, nil
}

func (s *Service) checkReferences(ctx context.Context, cmd SubmitCommand) error {
	if s.elections == nil {
		return nil
	}
	if _, err := s.elections.FindElection(ctx, cmd.ElectionID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeValidation, "election does not exist")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load election")
	}
	if cmd.PollingStationID == nil {
		return nil
	}
	if _, err := s.elections.FindPollingStation(ctx, *cmd.PollingStationID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncRejected("station_not_found")
			return dErrors.New(dErrors.CodeNotFound, "polling station not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load polling station")
	}
	return nil
}

// Get returns one report.
func (s *Service) Get(ctx context.Context, id domain.ReportID) (*models.Report, error) {
	r, err := s.reports.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load report")
	}
	return r, nil
}

func (s *Service) publish(ctx context.Context, typ fanout.EventType, r *models.Report, payload any) {
	topics := fanout.StationTopics(r.ElectionID)
	if r.Kind == models.KindIncident {
		topics = fanout.IncidentTopics()
	}
	ev, err := fanout.NewEvent(typ, topics, payload, r.UpdatedAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode event", "type", typ, "error", err)
		return
	}
	// The write already committed; a stopped hub only loses the live frame.
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.WarnContext(ctx, "event not published",
			"request_id", requestcontext.RequestID(ctx),
			"type", typ,
			"report_id", r.ID.String(),
			"error", err,
		)
	}
}

func translateStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "report not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	if _, ok := dErrors.As(err); ok {
		return toValidation(err)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}

// toValidation surfaces invariant violations as client errors.
func toValidation(err error) error {
	if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return dErrors.New(dErrors.CodeValidation, err.Error())
	}
	return err
}
