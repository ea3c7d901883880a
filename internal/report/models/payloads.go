package models

import (
	"strings"
	"time"

	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

type UpdateType string

const (
	UpdateOpening UpdateType = "opening"
	UpdateClosing UpdateType = "closing"
	UpdateTurnout UpdateType = "turnout"
	UpdateQueue   UpdateType = "queue"
	UpdateGeneral UpdateType = "general"
)

type IncidentType string

const (
	IncidentViolence     IncidentType = "violence"
	IncidentIrregularity IncidentType = "irregularity"
	IncidentDisruption   IncidentType = "disruption"
	IncidentTechnical    IncidentType = "technical"
	IncidentOther        IncidentType = "other"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

const (
	maxNotesLength       = 2000
	maxDescriptionLength = 5000
	maxLocationLength    = 500
	clockLayout          = "15:04"
)

// StationUpdate is the payload of a polling-station status report.
// Times are local wall-clock "HH:MM".
type StationUpdate struct {
	UpdateType       UpdateType `json:"update_type"`
	OpeningTime      string     `json:"opening_time,omitempty"`
	ClosingTime      string     `json:"closing_time,omitempty"`
	EstimatedTurnout *int       `json:"estimated_turnout,omitempty"`
	QueueWaitMinutes *int       `json:"queue_wait_minutes,omitempty"`
	QueueLength      *int       `json:"queue_length,omitempty"`
	StatusNotes      string     `json:"status_notes,omitempty"`
	Latitude         *float64   `json:"latitude,omitempty"`
	Longitude        *float64   `json:"longitude,omitempty"`
}

func (p StationUpdate) Validate() error {
	switch p.UpdateType {
	case UpdateOpening, UpdateClosing, UpdateTurnout, UpdateQueue, UpdateGeneral:
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "update_type must be one of opening, closing, turnout, queue, general")
	}
	for name, v := range map[string]*int{
		"estimated_turnout":  p.EstimatedTurnout,
		"queue_wait_minutes": p.QueueWaitMinutes,
		"queue_length":       p.QueueLength,
	} {
		if v != nil && *v < 0 {
			return dErrors.New(dErrors.CodeInvariantViolation, name+" must not be negative")
		}
	}
	for name, v := range map[string]string{"opening_time": p.OpeningTime, "closing_time": p.ClosingTime} {
		if v == "" {
			continue
		}
		if _, err := time.Parse(clockLayout, v); err != nil {
			return dErrors.New(dErrors.CodeInvariantViolation, name+" must be HH:MM")
		}
	}
	if len(p.StatusNotes) > maxNotesLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "status_notes is too long")
	}
	return validateCoordinates(p.Latitude, p.Longitude)
}

func (p StationUpdate) clone() StationUpdate {
	c := p
	c.EstimatedTurnout = cloneInt(p.EstimatedTurnout)
	c.QueueWaitMinutes = cloneInt(p.QueueWaitMinutes)
	c.QueueLength = cloneInt(p.QueueLength)
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	return c
}

// Incident is the payload of an incident report.
type Incident struct {
	IncidentType        IncidentType `json:"incident_type"`
	Severity            Severity     `json:"severity"`
	Description         string       `json:"description"`
	LocationDescription string       `json:"location_description,omitempty"`
	Latitude            *float64     `json:"latitude,omitempty"`
	Longitude           *float64     `json:"longitude,omitempty"`
}

func (p Incident) Validate() error {
	switch p.IncidentType {
	case IncidentViolence, IncidentIrregularity, IncidentDisruption, IncidentTechnical, IncidentOther:
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "incident_type must be one of violence, irregularity, disruption, technical, other")
	}
	switch p.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
	default:
		return dErrors.New(dErrors.CodeInvariantViolation, "severity must be one of low, medium, high, critical")
	}
	if strings.TrimSpace(p.Description) == "" {
		return dErrors.New(dErrors.CodeInvariantViolation, "description is required")
	}
	if len(p.Description) > maxDescriptionLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "description is too long")
	}
	if len(p.LocationDescription) > maxLocationLength {
		return dErrors.New(dErrors.CodeInvariantViolation, "location_description must be at most 500 characters")
	}
	return validateCoordinates(p.Latitude, p.Longitude)
}

func (p Incident) clone() Incident {
	c := p
	c.Latitude = cloneFloat(p.Latitude)
	c.Longitude = cloneFloat(p.Longitude)
	return c
}

func validateCoordinates(lat, lng *float64) error {
	if lat != nil && (*lat < -90 || *lat > 90) {
		return dErrors.New(dErrors.CodeInvariantViolation, "latitude out of range")
	}
	if lng != nil && (*lng < -180 || *lng > 180) {
		return dErrors.New(dErrors.CodeInvariantViolation, "longitude out of range")
	}
	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
