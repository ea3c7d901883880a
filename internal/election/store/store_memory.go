package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

// InMemoryStore backs development and tests. All records live under one
// RWMutex; upserts are atomic per call.
type InMemoryStore struct {
	mu             sync.RWMutex
	elections      map[domain.ElectionID]models.Election
	constituencies map[domain.ConstituencyID]models.Constituency
	stations       map[domain.StationID]models.PollingStation
	candidates     map[domain.CandidateID]models.Candidate
	results        map[models.ResultKey]models.Result
	nextID         int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		elections:      make(map[domain.ElectionID]models.Election),
		constituencies: make(map[domain.ConstituencyID]models.Constituency),
		stations:       make(map[domain.StationID]models.PollingStation),
		candidates:     make(map[domain.CandidateID]models.Candidate),
		results:        make(map[models.ResultKey]models.Result),
	}
}

func (s *InMemoryStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *InMemoryStore) CreateElection(_ context.Context, e *models.Election) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = domain.ElectionID(s.id())
	s.elections[e.ID] = *e
	return nil
}

func (s *InMemoryStore) FindElection(_ context.Context, id domain.ElectionID) (*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.elections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &e, nil
}

func (s *InMemoryStore) FindElectionByName(_ context.Context, name string) (*models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.sortedElections() {
		if strings.EqualFold(e.Name, name) {
			return &e, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) ListElections(_ context.Context, filter models.ElectionFilter) ([]models.Election, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Election
	for _, e := range s.sortedElections() {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *InMemoryStore) sortedElections() []models.Election {
	out := make([]models.Election, 0, len(s.elections))
	for _, e := range s.elections {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Election) int { return cmp.Compare(a.ID, b.ID) })
	return out
}

func (s *InMemoryStore) UpdateElectionSource(_ context.Context, id domain.ElectionID, sourceURL string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.elections[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	e.SourceURL = sourceURL
	e.UpdatedAt = now
	s.elections[id] = e
	return nil
}

// ArchiveBefore deactivates active elections dated before cutoff.
func (s *InMemoryStore) ArchiveBefore(_ context.Context, cutoff time.Time, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff = models.Day(cutoff)
	n := 0
	for id, e := range s.elections {
		if e.IsActive && e.Date.Before(cutoff) {
			e.IsActive = false
			e.UpdatedAt = now
			s.elections[id] = e
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CreateConstituency(_ context.Context, c *models.Constituency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.constituencies {
		if strings.EqualFold(existing.Name, c.Name) {
			return sentinel.ErrConflict
		}
	}
	c.ID = domain.ConstituencyID(s.id())
	s.constituencies[c.ID] = *c
	return nil
}

// FindConstituencyByName returns the lowest-id constituency whose name contains
// name, case-insensitively.
func (s *InMemoryStore) FindConstituencyByName(_ context.Context, name string) (*models.Constituency, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Constituency
	for _, c := range s.constituencies {
		if !strings.Contains(strings.ToLower(c.Name), needle) {
			continue
		}
		if found == nil || c.ID < found.ID {
			found = &c
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *InMemoryStore) ListConstituencies(_ context.Context) ([]models.Constituency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Constituency, 0, len(s.constituencies))
	for _, c := range s.constituencies {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b models.Constituency) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) CreatePollingStation(_ context.Context, p *models.PollingStation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.constituencies[p.ConstituencyID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.stations {
		if existing.Code == p.Code {
			return sentinel.ErrConflict
		}
	}
	p.ID = domain.StationID(s.id())
	s.stations[p.ID] = *p
	return nil
}

func (s *InMemoryStore) FindPollingStation(_ context.Context, id domain.StationID) (*models.PollingStation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.stations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// FirstStation returns the lowest-id station of a constituency.
func (s *InMemoryStore) FirstStation(_ context.Context, constituencyID domain.ConstituencyID) (*models.PollingStation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.PollingStation
	for _, p := range s.stations {
		if p.ConstituencyID != constituencyID {
			continue
		}
		if found == nil || p.ID < found.ID {
			found = &p
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found, nil
}

func (s *InMemoryStore) CreateCandidate(_ context.Context, c *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.elections[c.ElectionID]; !ok {
		return sentinel.ErrNotFound
	}
	c.ID = domain.CandidateID(s.id())
	s.candidates[c.ID] = *c
	return nil
}

func (s *InMemoryStore) CandidatesByElection(_ context.Context, electionID domain.ElectionID) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candidate
	for _, c := range s.candidates {
		if c.ElectionID == electionID {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b models.Candidate) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

// UpsertResult creates the result, updates it when the vote count differs or
// the row gains verification, or leaves storage untouched. An unverified
// tuple never overwrites a verified row.
func (s *InMemoryStore) UpsertResult(_ context.Context, r *models.Result) (models.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.candidates[r.CandidateID]; !ok {
		return models.Unchanged, sentinel.ErrNotFound
	}
	key := r.Key()
	existing, ok := s.results[key]
	if !ok {
		r.ID = domain.ResultID(s.id())
		s.results[key] = *r
		return models.Created, nil
	}
	gainsVerification := r.Verified && !existing.Verified
	if existing.Votes == r.Votes && !gainsVerification {
		*r = existing
		return models.Unchanged, nil
	}
	if existing.Verified && !r.Verified {
		*r = existing
		return models.Retained, nil
	}
	existing.Votes = r.Votes
	existing.SourceURL = r.SourceURL
	existing.Verified = r.Verified
	existing.UpdatedAt = r.UpdatedAt
	s.results[key] = existing
	*r = existing
	return models.Updated, nil
}

func (s *InMemoryStore) ResultsByElection(_ context.Context, electionID domain.ElectionID) ([]models.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Result
	for _, r := range s.results {
		if c, ok := s.candidates[r.CandidateID]; ok && c.ElectionID == electionID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.Result) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *InMemoryStore) CountVerifiedResults(_ context.Context, electionID domain.ElectionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.results {
		if c, ok := s.candidates[r.CandidateID]; ok && c.ElectionID == electionID && r.Verified {
			n++
		}
	}
	return n, nil
}
