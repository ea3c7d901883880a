package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/technerv/election-monitor/internal/election/models"
	electionstore "github.com/technerv/election-monitor/internal/election/store"
	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/reconcile/lease"
	"github.com/technerv/election-monitor/internal/reconcile/service/mocks"
	"github.com/technerv/election-monitor/internal/reconcile/source"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

type SynchronizerSuite struct {
	suite.Suite
	ctrl          *gomock.Controller
	store         *electionstore.InMemoryStore
	results       *mocks.MockResultSource
	announcements *mocks.MockAnnouncementSource
	publisher     *mocks.MockPublisher
	leases        *lease.InMemory
	sync          *Synchronizer

	now       time.Time
	ctx       context.Context
	election  *models.Election
	westlands *models.Constituency
	station   *models.PollingStation
	otieno    *models.Candidate
	achieng   *models.Candidate

	mu        sync.Mutex
	published []fanout.Event
}

func TestSynchronizerSuite(t *testing.T) {
	suite.Run(t, new(SynchronizerSuite))
}

func (s *SynchronizerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = electionstore.NewInMemoryStore()
	s.results = mocks.NewMockResultSource(s.ctrl)
	s.announcements = mocks.NewMockAnnouncementSource(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	s.leases = lease.NewInMemory()
	s.published = nil

	s.now = time.Date(2027, 8, 10, 6, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.election = s.createElection("General Election 2027", s.now.AddDate(0, 0, -1))
	s.westlands = &models.Constituency{Name: "Westlands", County: "Nairobi"}
	s.Require().NoError(s.store.CreateConstituency(s.ctx, s.westlands))
	s.station = &models.PollingStation{Name: "Westlands Primary", Code: "017-001", ConstituencyID: s.westlands.ID}
	s.Require().NoError(s.store.CreatePollingStation(s.ctx, s.station))
	s.otieno = s.createCandidate(s.election.ID, "James Otieno")
	s.achieng = s.createCandidate(s.election.ID, "Mary Achieng")

	var err error
	s.sync, err = New(s.store, s.results, s.publisher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithLocker(s.leases),
		WithAnnouncements(s.announcements),
	)
	s.Require().NoError(err)
}

func (s *SynchronizerSuite) createElection(name string, date time.Time) *models.Election {
	e, err := models.NewElection(name, date, models.ElectionTypeGeneral, "", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateElection(s.ctx, e))
	return e
}

func (s *SynchronizerSuite) createCandidate(electionID domain.ElectionID, name string) *models.Candidate {
	c := &models.Candidate{Name: name, Party: "IND", ElectionID: electionID}
	s.Require().NoError(s.store.CreateCandidate(s.ctx, c))
	return c
}

func (s *SynchronizerSuite) expectFetch(electionID domain.ElectionID, out source.Outcome, err error) *gomock.Call {
	return s.results.EXPECT().
		Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, target source.Target) (source.Outcome, error) {
			s.Equal(electionID, target.ElectionID)
			s.Equal([]string{"Westlands"}, target.Constituencies)
			return out, err
		})
}

func (s *SynchronizerSuite) recordPublishes() {
	s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev fanout.Event) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.published = append(s.published, ev)
			return nil
		}).AnyTimes()
}

func tuple(constituency, candidate string, votes int64) source.Candidate {
	return source.Candidate{
		ConstituencyName: constituency,
		CandidateName:    candidate,
		Votes:            votes,
		SourceURL:        "https://rts.example/1",
		Verified:         true,
	}
}

func resultsOnly() Request { return Request{ResultsOnly: true} }

func (s *SynchronizerSuite) TestNewRequiresDependencies() {
	_, err := New(nil, s.results, s.publisher)
	s.Error(err)
	_, err = New(s.store, nil, s.publisher)
	s.Error(err)
	_, err = New(s.store, s.results, nil)
	s.Error(err)
}

func (s *SynchronizerSuite) TestCreateUnchangedUpdate() {
	s.recordPublishes()

	s.Run("first sighting creates a verified result on the first station", func() {
		s.expectFetch(s.election.ID, source.Outcome{Strategy: source.StrategyRTS, Candidates: []source.Candidate{tuple("Westlands", "J. Otieno", 1000)}}, nil)

		sum := s.sync.Run(s.ctx, resultsOnly())
		s.Equal(StatusCompleted, sum.Status)
		s.Equal(1, sum.ElectionsChecked)
		s.Equal(1, sum.ResultsFetched)
		s.Equal(1, sum.ResultsCreated)
		s.Equal(0, sum.ResultsUpdated)
		s.Equal(1, sum.VerifiedResults)
		s.Empty(sum.Errors)
		s.Require().Len(s.published, 1)

		stored, err := s.store.ResultsByElection(s.ctx, s.election.ID)
		s.Require().NoError(err)
		s.Require().Len(stored, 1)
		s.Equal(s.otieno.ID, stored[0].CandidateID)
		s.Equal(1000, stored[0].Votes)
		s.True(stored[0].Verified)
		s.Require().NotNil(stored[0].PollingStationID)
		s.Equal(s.station.ID, *stored[0].PollingStationID)
	})

	s.Run("same count writes nothing and publishes nothing", func() {
		s.expectFetch(s.election.ID, source.Outcome{Candidates: []source.Candidate{tuple("Westlands", "J. Otieno", 1000)}}, nil)

		sum := s.sync.Run(s.ctx, resultsOnly())
		s.Equal(0, sum.ResultsCreated)
		s.Equal(0, sum.ResultsUpdated)
		s.Equal(1, sum.ResultsFetched)
		s.Len(s.published, 1)
	})

	s.Run("changed count updates and publishes once", func() {
		s.expectFetch(s.election.ID, source.Outcome{Candidates: []source.Candidate{tuple("Westlands", "J. Otieno", 1200)}}, nil)

		sum := s.sync.Run(s.ctx, resultsOnly())
		s.Equal(0, sum.ResultsCreated)
		s.Equal(1, sum.ResultsUpdated)
		s.Require().Len(s.published, 2)

		ev := s.published[1]
		s.Equal(fanout.EventResultUpdated, ev.Type)
		s.ElementsMatch(fanout.ResultTopics(s.election.ID), ev.Topics)
		var change ResultChange
		s.Require().NoError(json.Unmarshal(ev.Payload, &change))
		s.Equal("updated", change.Outcome)
		s.Equal(1200, change.Result.Votes)
		s.Equal("James Otieno", change.Candidate)
	})
}

func (s *SynchronizerSuite) TestRepeatedRunsAreIdempotent() {
	s.recordPublishes()
	batch := source.Outcome{Candidates: []source.Candidate{
		tuple("Westlands", "James Otieno", 410),
		tuple("Westlands", "Achieng", 388),
		tuple("", "Mary Achieng", 9001),
		// Unknown constituencies share the aggregate row.
		tuple("Kibra", "James Otieno", 1000),
		tuple("Langata", "James Otieno", 1500),
	}}
	s.expectFetch(s.election.ID, batch, nil).Times(3)

	first := s.sync.Run(s.ctx, resultsOnly())
	s.Equal(4, first.ResultsCreated)
	s.Zero(first.ResultsUpdated)
	s.Zero(first.ResultsSkipped)
	before, err := s.store.ResultsByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)

	for range 2 {
		sum := s.sync.Run(s.ctx, resultsOnly())
		s.Zero(sum.ResultsCreated)
		s.Zero(sum.ResultsUpdated)
	}
	after, err := s.store.ResultsByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Equal(before, after)
	s.Len(s.published, 4)

	var aggregate *models.Result
	for i := range after {
		if after[i].CandidateID == s.otieno.ID && after[i].PollingStationID == nil {
			aggregate = &after[i]
		}
	}
	s.Require().NotNil(aggregate)
	s.Equal(2500, aggregate.Votes)
}

func (s *SynchronizerSuite) TestDuplicateStationTupleIsSkipped() {
	s.recordPublishes()
	s.expectFetch(s.election.ID, source.Outcome{Candidates: []source.Candidate{
		tuple("Westlands", "James Otieno", 410),
		tuple("westlands", "J. Otieno", 999),
	}}, nil).Times(2)

	first := s.sync.Run(s.ctx, resultsOnly())
	s.Equal(1, first.ResultsCreated)
	s.Equal(1, first.ResultsSkipped)

	second := s.sync.Run(s.ctx, resultsOnly())
	s.Zero(second.ResultsUpdated)

	stored, err := s.store.ResultsByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(410, stored[0].Votes)
}

func (s *SynchronizerSuite) TestFallbackCannotOverwriteVerifiedCount() {
	s.recordPublishes()
	s.expectFetch(s.election.ID, source.Outcome{Strategy: source.StrategyRTS, Candidates: []source.Candidate{
		tuple("Westlands", "James Otieno", 1000),
	}}, nil)
	s.Equal(1, s.sync.Run(s.ctx, resultsOnly()).ResultsCreated)

	community := tuple("Westlands", "James Otieno", 4000)
	community.Verified = false
	s.expectFetch(s.election.ID, source.Outcome{Strategy: source.StrategyFallback, Candidates: []source.Candidate{community}}, nil)

	sum := s.sync.Run(s.ctx, resultsOnly())
	s.Zero(sum.ResultsUpdated)
	s.Equal(1, sum.ResultsSkipped)
	s.Equal(1, sum.VerifiedResults)
	s.Len(s.published, 1)

	stored, err := s.store.ResultsByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(1000, stored[0].Votes)
	s.True(stored[0].Verified)
}

func (s *SynchronizerSuite) TestUnmatchedAndAmbiguousAreSkipped() {
	s.createCandidate(s.election.ID, "Peter Kamau")
	s.createCandidate(s.election.ID, "Paul Kamau")
	s.expectFetch(s.election.ID, source.Outcome{Candidates: []source.Candidate{
		tuple("Westlands", "Grace Njeri", 55),
		tuple("Westlands", "Kamau", 70),
	}}, nil)

	sum := s.sync.Run(s.ctx, resultsOnly())
	s.Equal(2, sum.ResultsSkipped)
	s.Zero(sum.ResultsCreated)
	s.Empty(sum.Errors)

	candidates, err := s.store.CandidatesByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Len(candidates, 4, "scraped names never create candidates")
}

func (s *SynchronizerSuite) TestUnverifiedSourceAndAggregateRow() {
	s.recordPublishes()
	community := tuple("", "Mary Achieng", 77)
	community.Verified = false
	s.expectFetch(s.election.ID, source.Outcome{Strategy: source.StrategyFallback, Candidates: []source.Candidate{community}}, nil)

	sum := s.sync.Run(s.ctx, resultsOnly())
	s.Equal(1, sum.ResultsCreated)
	s.Zero(sum.VerifiedResults)

	stored, err := s.store.ResultsByElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 1)
	s.Equal(s.achieng.ID, stored[0].CandidateID)
	s.False(stored[0].Verified)
	s.Nil(stored[0].PollingStationID)
}

func (s *SynchronizerSuite) TestSourceFailureIsRecordedNotFatal() {
	s.recordPublishes()
	other := s.createElection("Kibra By-Election", s.now.AddDate(0, 0, -3))
	s.createCandidate(other.ID, "Ann Wanjiru")

	s.results.EXPECT().Fetch(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, target source.Target) (source.Outcome, error) {
			if target.ElectionID == s.election.ID {
				return source.Outcome{}, source.ErrAllStrategiesFailed
			}
			return source.Outcome{Candidates: []source.Candidate{tuple("", "Ann Wanjiru", 12)}}, nil
		}).Times(2)

	sum := s.sync.Run(s.ctx, resultsOnly())
	s.Equal(StatusCompleted, sum.Status)
	s.Equal(2, sum.ElectionsChecked)
	s.Equal(1, sum.ResultsCreated)
	s.Require().Len(sum.Errors, 1)
	s.Contains(sum.Errors[0], "all fetch strategies failed")
}

func (s *SynchronizerSuite) TestHeldLeaseSkipsElection() {
	release, err := s.leases.Acquire(s.ctx, leaseScope(s.election.ID), time.Minute)
	s.Require().NoError(err)
	defer func() { _ = release(s.ctx) }()

	sum := s.sync.Run(s.ctx, resultsOnly())
	s.Zero(sum.ElectionsChecked)
	s.Require().Len(sum.Errors, 1)
	s.Contains(sum.Errors[0], "sync already in progress")
}

func (s *SynchronizerSuite) TestLiveWindow() {
	s.Run("no election in window", func() {
		empty, err := New(electionstore.NewInMemoryStore(), s.results, s.publisher)
		s.Require().NoError(err)
		sum := empty.Run(s.ctx, Request{Live: true})
		s.Equal(StatusNoActiveElections, sum.Status)
		s.Zero(sum.ElectionsChecked)
	})

	s.Run("only recent elections", func() {
		s.createElection("Old By-Election", s.now.AddDate(0, -1, 0))
		s.createElection("Tomorrow Referendum", s.now.AddDate(0, 0, 1))
		s.createElection("Next Week Election", s.now.AddDate(0, 0, 7))

		var seen []domain.ElectionID
		s.results.EXPECT().Fetch(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, target source.Target) (source.Outcome, error) {
				s.mu.Lock()
				defer s.mu.Unlock()
				seen = append(seen, target.ElectionID)
				return source.Outcome{}, nil
			}).Times(2)

		sum := s.sync.Run(s.ctx, Request{Live: true})
		s.Equal(2, sum.ElectionsChecked)
		s.Contains(seen, s.election.ID)
	})
}

func (s *SynchronizerSuite) TestSingleElection() {
	s.Run("inactive election is reported", func() {
		inactive := s.createElection("Archived Election", s.now.AddDate(-3, 0, 0))
		_, err := s.store.ArchiveBefore(s.ctx, s.now.AddDate(-2, 0, 0), s.now)
		s.Require().NoError(err)
		s.announcements.EXPECT().FetchAnnouncements(gomock.Any()).Return(nil, nil)

		sum := s.sync.Run(s.ctx, Request{ElectionID: &inactive.ID})
		s.Zero(sum.ElectionsChecked)
		s.Require().Len(sum.Errors, 1)
		s.Contains(sum.Errors[0], "not found or inactive")
	})

	s.Run("selected election only, announcements still checked", func() {
		s.createElection("Other Election", s.now.AddDate(0, 0, -2))
		s.announcements.EXPECT().FetchAnnouncements(gomock.Any()).Return([]source.Announcement{
			{Title: "General Election 2027", SourceURL: "https://portal.example/ge-2027"},
		}, nil)
		s.expectFetch(s.election.ID, source.Outcome{}, nil)

		sum := s.sync.Run(s.ctx, Request{ElectionID: &s.election.ID})
		s.Equal(1, sum.ElectionsChecked)
		s.Equal(1, sum.AnnouncementsFetched)
		s.Equal(1, sum.ElectionsUpdated)
	})
}

func (s *SynchronizerSuite) TestDefaultRunChecksAnnouncements() {
	s.announcements.EXPECT().FetchAnnouncements(gomock.Any()).Return([]source.Announcement{
		{Title: "General Election 2027", SourceURL: "https://portal.example/ge-2027"},
		{Title: "Kisumu Central By-Election", SourceURL: "https://portal.example/kisumu"},
	}, nil)
	s.results.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(source.Outcome{}, nil).Times(2)

	sum := s.sync.Run(s.ctx, Request{})
	s.Equal(2, sum.AnnouncementsFetched)
	s.Equal(1, sum.ElectionsCreated)
	s.Equal(1, sum.ElectionsUpdated)
	s.Equal(1, sum.UpcomingElections, "the discovered election is dated today")
	s.Equal(2, sum.ElectionsChecked)

	created, err := s.store.FindElectionByName(s.ctx, "Kisumu Central By-Election")
	s.Require().NoError(err)
	s.Equal(models.ElectionTypeGeneral, created.Type)
	s.True(created.IsActive)
	s.Equal(models.Day(s.now), created.Date)

	refreshed, err := s.store.FindElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.Equal("https://portal.example/ge-2027", refreshed.SourceURL)
}

func (s *SynchronizerSuite) TestCheckAnnouncementsFailure() {
	s.announcements.EXPECT().FetchAnnouncements(gomock.Any()).Return(nil, errors.New("portal down"))
	sum := s.sync.CheckAnnouncements(s.ctx)
	s.Require().Len(sum.Errors, 1)
	s.Contains(sum.Errors[0], "portal down")
}

func (s *SynchronizerSuite) TestArchive() {
	old := s.createElection("General Election 2022", time.Date(2022, 8, 9, 0, 0, 0, 0, time.UTC))

	n, err := s.sync.Archive(s.ctx, s.now)
	s.Require().NoError(err)
	s.Equal(1, n)

	archived, err := s.store.FindElection(s.ctx, old.ID)
	s.Require().NoError(err)
	s.False(archived.IsActive)
	current, err := s.store.FindElection(s.ctx, s.election.ID)
	s.Require().NoError(err)
	s.True(current.IsActive)
}

func (s *SynchronizerSuite) TestCancelledRunFetchesNothing() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	sum := s.sync.Run(ctx, resultsOnly())
	s.Equal(StatusCancelled, sum.Status)
	s.Zero(sum.ElectionsChecked)
}
