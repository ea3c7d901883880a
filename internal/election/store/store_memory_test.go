package store

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store    *InMemoryStore
	now      time.Time
	election *models.Election
	cand     *models.Candidate
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	ctx := context.Background()
	s.store = NewInMemoryStore()
	s.now = time.Date(2027, 8, 9, 10, 0, 0, 0, time.UTC)

	e, err := models.NewElection("General Election 2027", s.now, models.ElectionTypeGeneral, "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateElection(ctx, e))
	s.election = e

	s.cand = &models.Candidate{Name: "James Otieno", Party: "ODM", ElectionID: e.ID}
	s.Require().NoError(s.store.CreateCandidate(ctx, s.cand))
}

func (s *InMemoryStoreSuite) TestUpsertResult() {
	ctx := context.Background()
	newResult := func(votes int) *models.Result {
		r, err := models.NewResult(s.cand.ID, nil, votes, true, "https://example.org/rts", s.now)
		s.Require().NoError(err)
		return r
	}

	s.Run("create then unchanged then updated", func() {
		out, err := s.store.UpsertResult(ctx, newResult(1000))
		s.Require().NoError(err)
		s.Equal(models.Created, out)

		out, err = s.store.UpsertResult(ctx, newResult(1000))
		s.Require().NoError(err)
		s.Equal(models.Unchanged, out)

		out, err = s.store.UpsertResult(ctx, newResult(1200))
		s.Require().NoError(err)
		s.Equal(models.Updated, out)

		results, err := s.store.ResultsByElection(ctx, s.election.ID)
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		s.Equal(1200, results[0].Votes)
	})

	s.Run("unknown candidate", func() {
		r, err := models.NewResult(999, nil, 1, true, "", s.now)
		s.Require().NoError(err)
		_, err = s.store.UpsertResult(ctx, r)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryStoreSuite) TestUnverifiedNeverReplacesVerified() {
	ctx := context.Background()
	upsert := func(votes int, verified bool) models.UpsertOutcome {
		r, err := models.NewResult(s.cand.ID, nil, votes, verified, "https://example.org/results", s.now)
		s.Require().NoError(err)
		out, err := s.store.UpsertResult(ctx, r)
		s.Require().NoError(err)
		return out
	}
	stored := func() models.Result {
		results, err := s.store.ResultsByElection(ctx, s.election.ID)
		s.Require().NoError(err)
		s.Require().Len(results, 1)
		return results[0]
	}

	s.Equal(models.Created, upsert(1000, false))
	s.Equal(models.Updated, upsert(1000, true), "same count gains verification")
	s.True(stored().Verified)

	s.Equal(models.Retained, upsert(4000, false))
	s.Equal(models.Unchanged, upsert(1000, false))
	got := stored()
	s.Equal(1000, got.Votes)
	s.True(got.Verified)

	s.Equal(models.Updated, upsert(1100, true))
	s.Equal(1100, stored().Votes)
}

func (s *InMemoryStoreSuite) TestConcurrentUpsertKeepsOneRow() {
	ctx := context.Background()
	var created atomic.Int32
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			r, _ := models.NewResult(s.cand.ID, nil, 100+i, true, "", s.now)
			out, err := s.store.UpsertResult(ctx, r)
			s.NoError(err)
			if out == models.Created {
				created.Add(1)
			}
		})
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	results, err := s.store.ResultsByElection(ctx, s.election.ID)
	s.Require().NoError(err)
	s.Len(results, 1)
}

func (s *InMemoryStoreSuite) TestConstituencyAndFirstStation() {
	ctx := context.Background()
	westlands := &models.Constituency{Name: "Westlands", County: "Nairobi"}
	s.Require().NoError(s.store.CreateConstituency(ctx, westlands))
	s.ErrorIs(s.store.CreateConstituency(ctx, &models.Constituency{Name: "westlands"}), sentinel.ErrConflict)

	second := &models.PollingStation{Name: "Parklands Primary", Code: "047-002", ConstituencyID: westlands.ID}
	first := &models.PollingStation{Name: "Kangemi Hall", Code: "047-001", ConstituencyID: westlands.ID}
	s.Require().NoError(s.store.CreatePollingStation(ctx, first))
	s.Require().NoError(s.store.CreatePollingStation(ctx, second))

	found, err := s.store.FindConstituencyByName(ctx, "WESTLAND")
	s.Require().NoError(err)
	s.Equal(westlands.ID, found.ID)

	station, err := s.store.FirstStation(ctx, westlands.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, station.ID)

	_, err = s.store.FindConstituencyByName(ctx, "Kisumu")
	s.ErrorIs(err, sentinel.ErrNotFound)
	_, err = s.store.FirstStation(ctx, domain.ConstituencyID(999))
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestArchiveAndList() {
	ctx := context.Background()
	old, err := models.NewElection("General Election 2022", s.now.AddDate(-5, 0, 0), models.ElectionTypeGeneral, "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateElection(ctx, old))

	n, err := s.store.ArchiveBefore(ctx, s.now.AddDate(0, 0, -730), s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	active, err := s.store.ListElections(ctx, models.ElectionFilter{ActiveOnly: true})
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(s.election.ID, active[0].ID)

	byName, err := s.store.FindElectionByName(ctx, "general election 2022")
	s.Require().NoError(err)
	s.False(byName.IsActive)
}
