package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
	"github.com/technerv/election-monitor/pkg/requestcontext"
)

// StatusChange is the payload of report.verified_status_changed.
type StatusChange struct {
	Report *models.Report            `json:"report"`
	Event  *models.VerificationEvent `json:"event"`
}

// Transition assigns a verification status and appends exactly one audit
// event. Re-assigning the current status is a valid transition and is
// logged like any other.
func (s *Service) Transition(ctx context.Context, principal domain.Principal, id domain.ReportID, status models.Status, notes string) (*models.Report, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "report.Transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("report.id", id.String()),
		attribute.String("report.status", string(status)),
	)

	report, err := s.transition(ctx, principal, id, status, notes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return nil, err
	}
	s.metrics.ObserveTransition(start)
	return report, nil
}

func (s *Service) transition(ctx context.Context, principal domain.Principal, id domain.ReportID, status models.Status, notes string) (*models.Report, error) {
	if !principal.CanVerify() {
		s.metrics.IncRejected("forbidden")
		s.logger.WarnContext(ctx, "transition forbidden",
			"request_id", requestcontext.RequestID(ctx),
			"report_id", id.String(),
			"principal", principal.ID,
		)
		return nil, dErrors.New(dErrors.CodeForbidden, "only verified observers and admins can verify reports")
	}
	if !models.KindIncident.Allows(status) {
		s.metrics.IncRejected("invalid_status")
		return nil, dErrors.New(dErrors.CodeValidation, "invalid status: "+string(status))
	}

	var (
		updated *models.Report
		event   *models.VerificationEvent
	)
	// Publishing under the report lock keeps hub order equal to commit order.
	err := s.locks.withReport(ctx, id, func() error {
		var err error
		updated, event, err = s.reports.Update(ctx, id, func(r *models.Report) (*models.VerificationEvent, error) {
			if !r.Kind.Allows(status) {
				return nil, dErrors.New(dErrors.CodeValidation, "status "+string(status)+" is not allowed for "+string(r.Kind))
			}
			return r.Transition(domain.NewEventID(), principal.ID, status, notes, requestcontext.Now(ctx))
		})
		if err != nil {
			return err
		}
		s.publish(ctx, fanout.EventReportStatusChanged, updated, StatusChange{Report: updated, Event: event})
		return nil
	})
	if err != nil {
		err = translateStoreErr(err, "failed to update report")
		switch dErrors.CodeOf(err) {
		case dErrors.CodeNotFound:
			s.metrics.IncRejected("not_found")
		case dErrors.CodeValidation:
			s.metrics.IncRejected("invalid_status")
		}
		return nil, err
	}

	s.metrics.IncTransition(string(updated.Kind), string(updated.Status))
	s.logger.InfoContext(ctx, "report status changed",
		"request_id", requestcontext.RequestID(ctx),
		"report_id", id.String(),
		"kind", updated.Kind,
		"previous_status", event.PreviousStatus,
		"new_status", event.NewStatus,
		"verifier_id", event.VerifierID,
	)
	return updated, nil
}

// Respond marks an incident as handled by an admin. It leaves the
// verification status and the audit trail untouched.
func (s *Service) Respond(ctx context.Context, principal domain.Principal, id domain.ReportID, notes string) (*models.Report, error) {
	if !principal.CanRespond() {
		return nil, dErrors.New(dErrors.CodeForbidden, "only admins can respond to incidents")
	}

	var updated *models.Report
	err := s.locks.withReport(ctx, id, func() error {
		var err error
		updated, _, err = s.reports.Update(ctx, id, func(r *models.Report) (*models.VerificationEvent, error) {
			return nil, r.Respond(notes, requestcontext.Now(ctx))
		})
		if err != nil {
			return err
		}
		s.publish(ctx, fanout.EventIncidentResponded, updated, updated)
		return nil
	})
	if err != nil {
		return nil, translateStoreErr(err, "failed to update incident")
	}

	s.metrics.IncResponded()
	s.logger.InfoContext(ctx, "incident responded",
		"request_id", requestcontext.RequestID(ctx),
		"report_id", id.String(),
		"admin_id", principal.ID,
	)
	return updated, nil
}
