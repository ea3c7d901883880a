package store

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

// InMemoryStore keeps reports and their audit trail in process. Update holds
// the write lock for the whole read-modify-write so a report and its event
// change together.
type InMemoryStore struct {
	mu      sync.RWMutex
	reports map[domain.ReportID]*models.Report
	events  map[domain.ReportID][]models.VerificationEvent
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		reports: make(map[domain.ReportID]*models.Report),
		events:  make(map[domain.ReportID][]models.VerificationEvent),
	}
}

func (s *InMemoryStore) Create(_ context.Context, r *models.Report) error {
	if err := r.CheckInvariants(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.reports[r.ID]; exists {
		return sentinel.ErrConflict
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ReportID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *InMemoryStore) Update(ctx context.Context, id domain.ReportID, mutate MutateFunc) (*models.Report, *models.VerificationEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	current, ok := s.reports[id]
	if !ok {
		return nil, nil, sentinel.ErrNotFound
	}
	next := current.Clone()
	ev, err := mutate(next)
	if err != nil {
		return nil, nil, err
	}
	if err := next.CheckInvariants(); err != nil {
		return nil, nil, err
	}
	s.reports[id] = next
	if ev != nil {
		s.events[id] = append(s.events[id], *ev)
	}
	return next.Clone(), ev, nil
}

func (s *InMemoryStore) ListEvents(_ context.Context, id domain.ReportID) ([]models.VerificationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.reports[id]; !ok {
		return nil, sentinel.ErrNotFound
	}
	return slices.Clone(s.events[id]), nil
}

// List returns matching reports, newest first.
func (s *InMemoryStore) List(_ context.Context, filter models.Filter) ([]*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Report
	for _, r := range s.reports {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Report) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) Count(_ context.Context, filter models.Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, r := range s.reports {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) CountByStatus(_ context.Context, kind models.Kind) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[models.Status]int)
	for _, r := range s.reports {
		if kind == "" || r.Kind == kind {
			out[r.Status]++
		}
	}
	return out, nil
}
