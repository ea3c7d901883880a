package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Publisher,ElectionLookup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	electionmodels "github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/internal/report/service/mocks"
	"github.com/technerv/election-monitor/internal/report/store"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	elections *mocks.MockElectionLookup
	service   *Service
	ctx       context.Context
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.elections = mocks.NewMockElectionLookup(s.ctrl)
	s.now = time.Date(2027, 8, 9, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	var err error
	s.service, err = New(s.store, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithElections(s.elections),
	)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) TestNew() {
	s.Run("nil store returns error", func() {
		_, err := New(nil, s.publisher)
		s.ErrorContains(err, "report store is required")
	})
	s.Run("nil publisher returns error", func() {
		_, err := New(s.store, nil)
		s.ErrorContains(err, "publisher is required")
	})
}

func (s *ServiceSuite) TestSubmit() {
	station := domain.StationID(7)

	s.Run("station update is stored pending and announced", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), domain.ElectionID(3)).Return(&electionmodels.Election{ID: 3}, nil)
		s.elections.EXPECT().FindPollingStation(gomock.Any(), station).Return(&electionmodels.PollingStation{ID: station}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, r *models.Report) error {
			s.Equal(models.StatusPending, r.Status)
			s.Equal("obs-1", *r.SubmitterID)
			return nil
		})
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, ev fanout.Event) error {
			s.Equal(fanout.EventReportCreated, ev.Type)
			s.ElementsMatch([]fanout.Topic{"election:3", fanout.TopicLive}, ev.Topics)
			return nil
		})

		r, err := s.service.Submit(s.ctx, domain.Principal{ID: "obs-1"}, SubmitCommand{
			Kind:             models.KindStationUpdate,
			ElectionID:       3,
			PollingStationID: &station,
			StationUpdate:    &models.StationUpdate{UpdateType: models.UpdateOpening, OpeningTime: "06:00"},
		})
		s.Require().NoError(err)
		s.False(r.IsAnonymous)
		s.Equal(s.now, r.CreatedAt)
	})

	s.Run("station update without station is a validation error", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), gomock.Any()).Return(&electionmodels.Election{ID: 3}, nil)
		_, err := s.service.Submit(s.ctx, domain.Principal{}, SubmitCommand{
			Kind:          models.KindStationUpdate,
			ElectionID:    3,
			StationUpdate: &models.StationUpdate{UpdateType: models.UpdateGeneral},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("payload violations surface as validation errors", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), gomock.Any()).Return(&electionmodels.Election{ID: 3}, nil)
		_, err := s.service.Submit(s.ctx, domain.Principal{}, SubmitCommand{
			Kind:       models.KindIncident,
			ElectionID: 3,
			Incident:   &models.Incident{IncidentType: models.IncidentOther},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown station is not found and nothing is stored", func() {
		missing := domain.StationID(987654)
		s.elections.EXPECT().FindElection(gomock.Any(), domain.ElectionID(3)).Return(&electionmodels.Election{ID: 3}, nil)
		s.elections.EXPECT().FindPollingStation(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		r, err := s.service.Submit(s.ctx, domain.Principal{ID: "obs-1"}, SubmitCommand{
			Kind:             models.KindStationUpdate,
			ElectionID:       3,
			PollingStationID: &missing,
			StationUpdate:    &models.StationUpdate{UpdateType: models.UpdateOpening, OpeningTime: "06:00"},
		})
		s.Nil(r)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("incident at an unknown station is not found", func() {
		missing := domain.StationID(55)
		s.elections.EXPECT().FindElection(gomock.Any(), domain.ElectionID(3)).Return(&electionmodels.Election{ID: 3}, nil)
		s.elections.EXPECT().FindPollingStation(gomock.Any(), missing).Return(nil, sentinel.ErrNotFound)

		_, err := s.service.Submit(s.ctx, domain.Principal{}, SubmitCommand{
			Kind:             models.KindIncident,
			ElectionID:       3,
			PollingStationID: &missing,
			Incident:         &models.Incident{IncidentType: models.IncidentTechnical, Description: "kit failure"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("station lookup failure is internal", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), gomock.Any()).Return(&electionmodels.Election{ID: 3}, nil)
		s.elections.EXPECT().FindPollingStation(gomock.Any(), station).Return(nil, errors.New("connection reset"))

		_, err := s.service.Submit(s.ctx, domain.Principal{}, SubmitCommand{
			Kind:             models.KindStationUpdate,
			ElectionID:       3,
			PollingStationID: &station,
			StationUpdate:    &models.StationUpdate{UpdateType: models.UpdateGeneral},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInternal))
	})

	s.Run("unknown election is rejected", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), domain.ElectionID(99)).Return(nil, sentinel.ErrNotFound)
		_, err := s.service.Submit(s.ctx, domain.Principal{}, SubmitCommand{
			Kind:       models.KindIncident,
			ElectionID: 99,
			Incident:   &models.Incident{IncidentType: models.IncidentOther, Description: "x"},
		})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("publish failure does not fail a stored submission", func() {
		s.elections.EXPECT().FindElection(gomock.Any(), gomock.Any()).Return(&electionmodels.Election{ID: 3}, nil)
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(fanout.ErrStopped)

		r, err := s.service.Submit(s.ctx, domain.Principal{ID: "obs-1"}, SubmitCommand{
			Kind:       models.KindIncident,
			ElectionID: 3,
			Incident:   &models.Incident{IncidentType: models.IncidentTechnical, Description: "kit failure"},
		})
		s.Require().NoError(err)
		s.Equal(models.SeverityMedium, r.Incident.Severity)
	})
}

func (s *ServiceSuite) TestTransitionRejectionsWriteNothing() {
	id := domain.NewReportID()

	s.Run("anonymous caller is forbidden", func() {
		_, err := s.service.Transition(s.ctx, domain.Principal{}, id, models.StatusVerified, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("plain citizen is forbidden", func() {
		_, err := s.service.Transition(s.ctx, domain.Principal{ID: "citizen"}, id, models.StatusVerified, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("pending is never a target", func() {
		_, err := s.service.Transition(s.ctx, domain.Principal{ID: "a", IsAdmin: true}, id, models.StatusPending, "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown status is rejected", func() {
		_, err := s.service.Transition(s.ctx, domain.Principal{ID: "a", IsAdmin: true}, id, "approved", "")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestTransitionNotFound() {
	id := domain.NewReportID()
	s.store.EXPECT().Update(gomock.Any(), id, gomock.Any()).Return(nil, nil, sentinel.ErrNotFound)

	_, err := s.service.Transition(s.ctx, domain.Principal{ID: "o", IsVerifiedObserver: true}, id, models.StatusVerified, "")
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestTransitionStoreFailureIsInternal() {
	id := domain.NewReportID()
	s.store.EXPECT().Update(gomock.Any(), id, gomock.Any()).Return(nil, nil, errors.New("connection reset"))

	_, err := s.service.Transition(s.ctx, domain.Principal{ID: "o", IsVerifiedObserver: true}, id, models.StatusVerified, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *ServiceSuite) TestTransitionResolvedRejectedForStationUpdate() {
	station := domain.StationID(2)
	report, err := models.NewStationUpdate(domain.NewReportID(), 1, station, models.StationUpdate{UpdateType: models.UpdateGeneral}, nil, s.now)
	s.Require().NoError(err)

	s.store.EXPECT().Update(gomock.Any(), report.ID, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ domain.ReportID, mutate store.MutateFunc) (*models.Report, *models.VerificationEvent, error) {
			ev, err := mutate(report.Clone())
			return nil, ev, err
		})

	_, err = s.service.Transition(s.ctx, domain.Principal{ID: "a", IsAdmin: true}, report.ID, models.StatusResolved, "")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestRespond() {
	s.Run("observers cannot respond", func() {
		_, err := s.service.Respond(s.ctx, domain.Principal{ID: "o", IsVerifiedObserver: true}, domain.NewReportID(), "sent police")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("station updates cannot be responded to", func() {
		report, err := models.NewStationUpdate(domain.NewReportID(), 1, 2, models.StationUpdate{UpdateType: models.UpdateGeneral}, nil, s.now)
		s.Require().NoError(err)
		s.store.EXPECT().Update(gomock.Any(), report.ID, gomock.Any()).DoAndReturn(
			func(_ context.Context, _ domain.ReportID, mutate store.MutateFunc) (*models.Report, *models.VerificationEvent, error) {
				ev, err := mutate(report.Clone())
				return nil, ev, err
			})
		_, err = s.service.Respond(s.ctx, domain.Principal{ID: "a", IsAdmin: true}, report.ID, "n/a")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *ServiceSuite) TestStatistics() {
	s.store.EXPECT().CountByStatus(gomock.Any(), models.KindIncident).Return(map[models.Status]int{
		models.StatusPending:  4,
		models.StatusVerified: 2,
		models.StatusResolved: 1,
	}, nil)
	s.store.EXPECT().Count(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f models.Filter) (int, error) {
		s.Equal(models.SeverityCritical, f.Severity)
		s.ElementsMatch([]models.Status{models.StatusPending, models.StatusVerified}, f.Statuses)
		return 3, nil
	})

	stats, err := s.service.Statistics(s.ctx, models.KindIncident)
	s.Require().NoError(err)
	s.Equal(7, stats.Total)
	s.Equal(4, stats.Pending)
	s.Equal(3, stats.Critical)
}

func (s *ServiceSuite) TestLiveUsesLastHour() {
	s.store.EXPECT().List(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, f models.Filter) ([]*models.Report, error) {
		s.Require().NotNil(f.Since)
		s.Equal(s.now.Add(-time.Hour), *f.Since)
		s.Equal(models.KindStationUpdate, f.Kind)
		return nil, nil
	})
	_, err := s.service.Live(s.ctx, models.KindStationUpdate, 0)
	s.NoError(err)
}
