package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/technerv/election-monitor/pkg/domain"
)

const (
	StatusCompleted         = "completed"
	StatusCancelled         = "cancelled"
	StatusNoActiveElections = "no_active_elections"
)

// Request selects what a run covers. The zero value is a default run:
// discover announced elections, then reconcile every active election dated
// today or earlier. Announcements are checked on every run except live and
// results-only runs.
type Request struct {
	ElectionID   *domain.ElectionID `json:"election_id,omitempty"`
	AllElections bool               `json:"all_elections,omitempty"`
	ResultsOnly  bool               `json:"results_only,omitempty"`
	Live         bool               `json:"live,omitempty"`
}

func (r Request) kind() string {
	switch {
	case r.Live:
		return "live"
	case r.ElectionID != nil:
		return "election"
	case r.ResultsOnly:
		return "results"
	default:
		return "default"
	}
}

// Summary is returned to the caller of a run. It is never published.
type Summary struct {
	Status               string    `json:"status"`
	ElectionsChecked     int       `json:"elections_checked"`
	ResultsFetched       int       `json:"results_fetched"`
	ResultsCreated       int       `json:"results_created"`
	ResultsUpdated       int       `json:"results_updated"`
	ResultsSkipped       int       `json:"results_skipped"`
	VerifiedResults      int       `json:"verified_results"`
	AnnouncementsFetched int       `json:"announcements_fetched"`
	ElectionsCreated     int       `json:"elections_created"`
	ElectionsUpdated     int       `json:"elections_updated"`
	UpcomingElections    int       `json:"upcoming_elections"`
	Errors               []string  `json:"errors"`
	CheckedAt            time.Time `json:"checked_at"`

	mu sync.Mutex
}

func newSummary(now time.Time) *Summary {
	return &Summary{Status: StatusCompleted, Errors: []string{}, CheckedAt: now}
}

func (s *Summary) addError(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, fmt.Sprintf(format, args...))
}

// electionTally is the per-election part of a run, merged once the election
// is done so concurrent elections never contend on the summary.
type electionTally struct {
	fetched, created, updated, skipped, verified int
}

func (s *Summary) merge(t electionTally) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ElectionsChecked++
	s.ResultsFetched += t.fetched
	s.ResultsCreated += t.created
	s.ResultsUpdated += t.updated
	s.ResultsSkipped += t.skipped
	s.VerifiedResults += t.verified
}
