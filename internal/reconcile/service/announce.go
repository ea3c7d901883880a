package service

import (
	"context"
	"errors"
	"time"

	"github.com/technerv/election-monitor/internal/election/models"
	"github.com/technerv/election-monitor/pkg/platform/sentinel"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// CheckAnnouncements discovers elections announced on the commission's
// site. Unknown titles become active general elections dated today; known
// ones get their source URL refreshed.
func (s *Synchronizer) CheckAnnouncements(ctx context.Context) *Summary {
	now := requestcontext.Now(ctx)
	sum := newSummary(now)
	if s.announcements == nil {
		sum.addError("announcement source is not configured")
		return sum
	}
	s.checkAnnouncements(ctx, now, sum)
	return sum
}

func (s *Synchronizer) checkAnnouncements(ctx context.Context, now time.Time, sum *Summary) {
	found, err := s.announcements.FetchAnnouncements(ctx)
	if err != nil {
		sum.addError("fetch announcements: %v", err)
		return
	}
	sum.AnnouncementsFetched = len(found)

	for _, a := range found {
		existing, err := s.store.FindElectionByName(ctx, a.Title)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			e, err := models.NewElection(a.Title, now, models.ElectionTypeGeneral, a.SourceURL, now)
			if err != nil {
				sum.addError("announcement %q: %v", a.Title, err)
				continue
			}
			if err := s.store.CreateElection(ctx, e); err != nil {
				sum.addError("create election %q: %v", a.Title, err)
				continue
			}
			sum.ElectionsCreated++
			s.logger.InfoContext(ctx, "election discovered", "election_id", e.ID, "name", e.Name)
		case err != nil:
			sum.addError("find election %q: %v", a.Title, err)
		case a.SourceURL != "" && existing.SourceURL != a.SourceURL:
			if err := s.store.UpdateElectionSource(ctx, existing.ID, a.SourceURL, now); err != nil {
				sum.addError("update election %q: %v", a.Title, err)
				continue
			}
			sum.ElectionsUpdated++
		}
	}

	today := models.Day(now)
	upcoming, err := s.store.ListElections(ctx, models.ElectionFilter{ActiveOnly: true, From: &today})
	if err != nil {
		sum.addError("list upcoming elections: %v", err)
		return
	}
	sum.UpcomingElections = len(upcoming)
}

// Archive deactivates elections dated before now minus the archive horizon
// and returns how many changed.
func (s *Synchronizer) Archive(ctx context.Context, now time.Time) (int, error) {
	cutoff := models.Day(now).Add(-s.archiveAfter)
	n, err := s.store.ArchiveBefore(ctx, cutoff, now)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "elections archived", "count", n, "cutoff", cutoff)
	return n, nil
}
