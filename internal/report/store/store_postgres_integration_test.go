//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/internal/report/store"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	"github.com/technerv/election-monitor/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.now = time.Now().UTC().Truncate(time.Microsecond)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verification_events", "reports"))
}

func (s *PostgresStoreSuite) createStation() *models.Report {
	turnout := 120
	r, err := models.NewStationUpdate(domain.NewReportID(), 9, 4, models.StationUpdate{
		UpdateType: models.UpdateTurnout, EstimatedTurnout: &turnout, OpeningTime: "06:00",
	}, nil, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	r := s.createStation()

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.KindStationUpdate, found.Kind)
	s.Require().NotNil(found.StationUpdate)
	s.Equal(120, *found.StationUpdate.EstimatedTurnout)
	s.Equal(domain.StationID(4), *found.PollingStationID)
	s.True(found.IsAnonymous)

	s.ErrorIs(s.store.Create(ctx, r), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestConcurrentTransitionsSerializeOnRowLock() {
	ctx := context.Background()
	r := s.createStation()
	statuses := []models.Status{models.StatusVerified, models.StatusDisputed, models.StatusUnverified}

	var wg sync.WaitGroup
	for i := range 30 {
		wg.Go(func() {
			_, _, err := s.store.Update(ctx, r.ID, func(r *models.Report) (*models.VerificationEvent, error) {
				return r.Transition(domain.NewEventID(), "observer", statuses[i%3], "", time.Now().UTC())
			})
			s.NoError(err)
		})
	}
	wg.Wait()

	events, err := s.store.ListEvents(ctx, r.ID)
	s.Require().NoError(err)
	s.Require().Len(events, 30)
	for i := 1; i < len(events); i++ {
		s.Equal(events[i-1].NewStatus, events[i].PreviousStatus)
	}
	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(events[29].NewStatus, found.Status)
	s.Require().NotNil(found.VerifierID)
}

func (s *PostgresStoreSuite) TestVerificationEventsAreAppendOnly() {
	ctx := context.Background()
	r := s.createStation()
	_, _, err := s.store.Update(ctx, r.ID, func(r *models.Report) (*models.VerificationEvent, error) {
		return r.Transition(domain.NewEventID(), "observer", models.StatusVerified, "", s.now)
	})
	s.Require().NoError(err)

	_, err = s.postgres.Exec(ctx, `UPDATE verification_events SET notes = 'edited'`)
	s.Error(err)
	_, err = s.postgres.Exec(ctx, `DELETE FROM verification_events`)
	s.Error(err)
}

func (s *PostgresStoreSuite) TestFiltersAndCounts() {
	ctx := context.Background()
	s.createStation()
	incident, err := models.NewIncident(domain.NewReportID(), 9, nil, models.Incident{
		IncidentType: models.IncidentViolence, Severity: models.SeverityCritical, Description: "clash",
	}, nil, true, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(ctx, incident))

	critical, err := s.store.List(ctx, models.Filter{
		Severity: models.SeverityCritical,
		Statuses: []models.Status{models.StatusPending, models.StatusVerified},
	})
	s.Require().NoError(err)
	s.Require().Len(critical, 1)
	s.Equal(incident.ID, critical[0].ID)

	counts, err := s.store.CountByStatus(ctx, "")
	s.Require().NoError(err)
	s.Equal(2, counts[models.StatusPending])

	since := s.now.Add(time.Minute)
	n, err := s.store.Count(ctx, models.Filter{Since: &since})
	s.Require().NoError(err)
	s.Zero(n)
}
