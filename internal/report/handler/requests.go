package handler

import (
	"strings"

	"github.com/technerv/election-monitor/internal/report/models"
	"github.com/technerv/election-monitor/internal/report/service"
	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

// SubmitReportRequest is the body of POST /reports.
type SubmitReportRequest struct {
	Kind             string                `json:"kind"`
	ElectionID       int64                 `json:"election_id"`
	PollingStationID *int64                `json:"polling_station_id,omitempty"`
	Anonymous        bool                  `json:"anonymous,omitempty"`
	StationUpdate    *models.StationUpdate `json:"station_update,omitempty"`
	Incident         *models.Incident      `json:"incident,omitempty"`
}

func (r *SubmitReportRequest) Normalize() {
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	if r.Incident != nil {
		r.Incident.Description = strings.TrimSpace(r.Incident.Description)
		r.Incident.LocationDescription = strings.TrimSpace(r.Incident.LocationDescription)
	}
	if r.StationUpdate != nil {
		r.StationUpdate.StatusNotes = strings.TrimSpace(r.StationUpdate.StatusNotes)
	}
}

func (r *SubmitReportRequest) Validate() error {
	kind, err := models.ParseKind(r.Kind)
	if err != nil {
		return err
	}
	if r.ElectionID <= 0 {
		return dErrors.New(dErrors.CodeValidation, "election_id is required")
	}
	switch kind {
	case models.KindStationUpdate:
		if r.PollingStationID == nil {
			return dErrors.New(dErrors.CodeValidation, "polling_station_id is required for station updates")
		}
		if r.StationUpdate == nil || r.Incident != nil {
			return dErrors.New(dErrors.CodeValidation, "station_update payload is required")
		}
	case models.KindIncident:
		if r.Incident == nil || r.StationUpdate != nil {
			return dErrors.New(dErrors.CodeValidation, "incident payload is required")
		}
	}
	return nil
}

func (r *SubmitReportRequest) Command() service.SubmitCommand {
	cmd := service.SubmitCommand{
		Kind:          models.Kind(r.Kind),
		ElectionID:    domain.ElectionID(r.ElectionID),
		Anonymous:     r.Anonymous,
		StationUpdate: r.StationUpdate,
		Incident:      r.Incident,
	}
	if r.PollingStationID != nil {
		id := domain.StationID(*r.PollingStationID)
		cmd.PollingStationID = &id
	}
	return cmd
}

// VerifyRequest is the body of POST /reports/{id}/verify.
type VerifyRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (r *VerifyRequest) Normalize() {
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *VerifyRequest) Validate() error {
	if r.Status == "" {
		return dErrors.New(dErrors.CodeValidation, "status is required")
	}
	return nil
}

type RespondRequest struct {
	Notes string `json:"notes"`
}

func (r *RespondRequest) Normalize() {
	r.Notes = strings.TrimSpace(r.Notes)
}

func (r *RespondRequest) Validate() error {
	return nil
}
