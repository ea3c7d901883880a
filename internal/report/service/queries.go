package service

import (
	"context"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/pkg/domain"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// Statistics summarizes reports of one kind, or of both when Kind is empty.
type Statistics struct {
	Kind     models.Kind           `json:"kind,omitempty"`
	Total    int                   `json:"total"`
	ByStatus map[models.Status]int `json:"by_status"`
	Pending  int                   `json:"pending"`
	Critical int                   `json:"critical_incidents"`
}

// Verifications returns the audit trail of a report, oldest first.
func (s *Service) Verifications(ctx context.Context, id domain.ReportID) ([]models.VerificationEvent, error) {
	events, err := s.reports.ListEvents(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err, "failed to load verification history")
	}
	return events, nil
}

// Live lists reports created within the last hour, newest first.
func (s *Service) Live(ctx context.Context, kind models.Kind, limit int) ([]*models.Report, error) {
	since := requestcontext.Now(ctx).Add(-liveWindow)
	reports, err := s.reports.List(ctx, models.Filter{Kind: kind, Since: &since, Limit: limit})
	if err != nil {
		return nil, translateStoreErr(err, "failed to list live reports")
	}
	return reports, nil
}

// CriticalIncidents lists critical incidents that are not yet discredited
// or closed.
func (s *Service) CriticalIncidents(ctx context.Context, limit int) ([]*models.Report, error) {
	reports, err := s.reports.List(ctx, criticalFilter(limit))
	if err != nil {
		return nil, translateStoreErr(err, "failed to list critical incidents")
	}
	return reports, nil
}

func criticalFilter(limit int) models.Filter {
	return models.Filter{
		Kind:     models.KindIncident,
		Severity: models.SeverityCritical,
		Statuses: []models.Status{models.StatusPending, models.StatusVerified},
		Limit:    limit,
	}
}

func (s *Service) Statistics(ctx context.Context, kind models.Kind) (*Statistics, error) {
	byStatus, err := s.reports.CountByStatus(ctx, kind)
	if err != nil {
		return nil, translateStoreErr(err, "failed to count reports")
	}
	stats := &Statistics{Kind: kind, ByStatus: byStatus}
	for _, n := range byStatus {
		stats.Total += n
	}
	stats.Pending = byStatus[models.StatusPending]

	if kind == "" || kind == models.KindIncident {
		stats.Critical, err = s.reports.Count(ctx, criticalFilter(0))
		if err != nil {
			return nil, translateStoreErr(err, "failed to count critical incidents")
		}
	}
	return stats, nil
}
