// Package models defines citizen reports and their verification audit trail.
// A report is a tagged variant: Kind selects which payload is set and which
// statuses a verifier may assign.
package models

import (
	"slices"
	"time"

	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

type Kind string

const (
	KindStationUpdate Kind = "station_update"
	KindIncident      Kind = "incident"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindStationUpdate, KindIncident:
		return Kind(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "kind must be station_update or incident")
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusVerified   Status = "verified"
	StatusUnverified Status = "unverified"
	StatusDisputed   Status = "disputed"
	StatusResolved   Status = "resolved"
)

var (
	stationStatuses  = []Status{StatusVerified, StatusUnverified, StatusDisputed}
	incidentStatuses = []Status{StatusVerified, StatusUnverified, StatusDisputed, StatusResolved}
)

// AllowedStatuses lists the statuses a verifier may assign. Pending is never
// a target.
func (k Kind) AllowedStatuses() []Status {
	switch k {
	case KindStationUpdate:
		return stationStatuses
	case KindIncident:
		return incidentStatuses
	}
	return nil
}

func (k Kind) Allows(s Status) bool {
	return slices.Contains(k.AllowedStatuses(), s)
}

// Report is one citizen observation. Exactly one of StationUpdate and
// Incident is set, matching Kind.
type Report struct {
	ID               domain.ReportID   `json:"id"`
	Kind             Kind              `json:"kind"`
	ElectionID       domain.ElectionID `json:"election_id"`
	PollingStationID *domain.StationID `json:"polling_station_id,omitempty"`

	StationUpdate *StationUpdate `json:"station_update,omitempty"`
	Incident      *Incident      `json:"incident,omitempty"`

	Status            Status     `json:"verification_status"`
	VerifierID        *string    `json:"verified_by,omitempty"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
	VerificationNotes string     `json:"verification_notes,omitempty"`

	SubmitterID *string `json:"-"`
	IsAnonymous bool    `json:"is_anonymous"`

	// Incident only.
	RespondedTo   bool   `json:"responded_to"`
	ResponseNotes string `json:"response_notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewStationUpdate builds a pending station update report.
func NewStationUpdate(id domain.ReportID, electionID domain.ElectionID, stationID domain.StationID, payload StationUpdate, submitter *string, now time.Time) (*Report, error) {
	if electionID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "election is required")
	}
	if stationID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "polling station is required for a station update")
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	return &Report{
		ID:               id,
		Kind:             KindStationUpdate,
		ElectionID:       electionID,
		PollingStationID: &stationID,
		StationUpdate:    &payload,
		Status:           StatusPending,
		SubmitterID:      submitter,
		IsAnonymous:      submitter == nil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// NewIncident builds a pending incident report. The station is optional and
// the submitter is dropped when the report is anonymous.
func NewIncident(id domain.ReportID, electionID domain.ElectionID, stationID *domain.StationID, payload Incident, submitter *string, anonymous bool, now time.Time) (*Report, error) {
	if electionID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "election is required")
	}
	if stationID != nil && *stationID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "invalid polling station")
	}
	if payload.Severity == "" {
		payload.Severity = SeverityMedium
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}
	if anonymous || submitter == nil {
		submitter = nil
		anonymous = true
	}
	return &Report{
		ID:               id,
		Kind:             KindIncident,
		ElectionID:       electionID,
		PollingStationID: stationID,
		Incident:         &payload,
		Status:           StatusPending,
		SubmitterID:      submitter,
		IsAnonymous:      anonymous,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// VerificationEvent is one append-only audit row.
type VerificationEvent struct {
	ID             domain.EventID  `json:"id"`
	ReportID       domain.ReportID `json:"report_id"`
	Kind           Kind            `json:"kind"`
	PreviousStatus Status          `json:"previous_status"`
	NewStatus      Status          `json:"new_status"`
	VerifierID     string          `json:"verified_by"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Transition assigns status and returns the audit event that records it. The
// same status may be assigned again; it is still logged.
func (r *Report) Transition(eventID domain.EventID, verifierID string, status Status, notes string, now time.Time) (*VerificationEvent, error) {
	if !r.Kind.Allows(status) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "status "+string(status)+" is not allowed for "+string(r.Kind))
	}
	if verifierID == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "verifier is required")
	}
	ev := &VerificationEvent{
		ID:             eventID,
		ReportID:       r.ID,
		Kind:           r.Kind,
		PreviousStatus: r.Status,
		NewStatus:      status,
		VerifierID:     verifierID,
		Notes:          notes,
		CreatedAt:      now,
	}
	r.Status = status
	r.VerifierID = &verifierID
	r.VerifiedAt = &now
	r.VerificationNotes = notes
	r.UpdatedAt = now
	return ev, nil
}

// Respond marks an incident as handled. Status is untouched.
func (r *Report) Respond(notes string, now time.Time) error {
	if r.Kind != KindIncident {
		return dErrors.New(dErrors.CodeInvariantViolation, "only incidents can be responded to")
	}
	r.RespondedTo = true
	r.ResponseNotes = notes
	r.UpdatedAt = now
	return nil
}

// CheckInvariants reports a report that storage must refuse.
func (r *Report) CheckInvariants() error {
	if r.Status != StatusPending && (r.VerifierID == nil || r.VerifiedAt == nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "verified report must record verifier and time")
	}
	if r.Status != StatusPending && !r.Kind.Allows(r.Status) {
		return dErrors.New(dErrors.CodeInvariantViolation, "status not allowed for kind")
	}
	if (r.Kind == KindStationUpdate) != (r.StationUpdate != nil) || (r.Kind == KindIncident) != (r.Incident != nil) {
		return dErrors.New(dErrors.CodeInvariantViolation, "payload does not match kind")
	}
	return nil
}

// Severity is the incident severity, or empty for station updates.
func (r *Report) Severity() Severity {
	if r.Incident == nil {
		return ""
	}
	return r.Incident.Severity
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (r *Report) Clone() *Report {
	c := *r
	if r.PollingStationID != nil {
		v := *r.PollingStationID
		c.PollingStationID = &v
	}
	if r.StationUpdate != nil {
		v := r.StationUpdate.clone()
		c.StationUpdate = &v
	}
	if r.Incident != nil {
		v := r.Incident.clone()
		c.Incident = &v
	}
	if r.VerifierID != nil {
		v := *r.VerifierID
		c.VerifierID = &v
	}
	if r.VerifiedAt != nil {
		v := *r.VerifiedAt
		c.VerifiedAt = &v
	}
	if r.SubmitterID != nil {
		v := *r.SubmitterID
		c.SubmitterID = &v
	}
	return &c
}

// Filter narrows report listings. Zero values do not filter.
type Filter struct {
	Kind       Kind
	ElectionID *domain.ElectionID
	Since      *time.Time
	Statuses   []Status
	Severity   Severity
	Limit      int
}

func (f Filter) Matches(r *Report) bool {
	if f.Kind != "" && r.Kind != f.Kind {
		return false
	}
	if f.ElectionID != nil && r.ElectionID != *f.ElectionID {
		return false
	}
	if f.Since != nil && r.CreatedAt.Before(*f.Since) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status) {
		return false
	}
	if f.Severity != "" && r.Severity() != f.Severity {
		return false
	}
	return true
}
