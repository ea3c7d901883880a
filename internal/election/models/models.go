// Package models holds the election reference data and official results.
package models

import (
	"strings"
	"time"

	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

type ElectionType string

const (
	ElectionTypeGeneral    ElectionType = "general"
	ElectionTypeByElection ElectionType = "by_election"
	ElectionTypeReferendum ElectionType = "referendum"
)

func (t ElectionType) IsValid() bool {
	switch t {
	case ElectionTypeGeneral, ElectionTypeByElection, ElectionTypeReferendum:
		return true
	}
	return false
}

type Election struct {
	ID        domain.ElectionID `json:"id"`
	Name      string            `json:"name"`
	Date      time.Time         `json:"date"`
	Type      ElectionType      `json:"type"`
	IsActive  bool              `json:"is_active"`
	SourceURL string            `json:"source_url,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewElection builds an active election. Date is truncated to the day.
func NewElection(name string, date time.Time, typ ElectionType, sourceURL string, now time.Time) (*Election, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "election name is required")
	}
	if len(name) > 200 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "election name must be at most 200 characters")
	}
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "unknown election type: "+string(typ))
	}
	return &Election{
		Name:      name,
		Date:      Day(date),
		Type:      typ,
		IsActive:  true,
		SourceURL: sourceURL,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type Constituency struct {
	ID     domain.ConstituencyID `json:"id"`
	Name   string                `json:"name"`
	County string                `json:"county"`
}

type PollingStation struct {
	ID             domain.StationID      `json:"id"`
	Name           string                `json:"name"`
	Code           string                `json:"code"`
	ConstituencyID domain.ConstituencyID `json:"constituency_id"`
}

type Candidate struct {
	ID             domain.CandidateID     `json:"id"`
	Name           string                 `json:"name"`
	Party          string                 `json:"party"`
	ElectionID     domain.ElectionID      `json:"election_id"`
	ConstituencyID *domain.ConstituencyID `json:"constituency_id,omitempty"`
}

// Result is an official vote count. A nil PollingStationID is the aggregate
// row for the candidate.
type Result struct {
	ID               domain.ResultID    `json:"id"`
	CandidateID      domain.CandidateID `json:"candidate_id"`
	PollingStationID *domain.StationID  `json:"polling_station_id,omitempty"`
	Votes            int                `json:"votes"`
	Verified         bool               `json:"verified"`
	SourceURL        string             `json:"source_url"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// NewResult validates the vote count before a result reaches storage.
func NewResult(candidateID domain.CandidateID, stationID *domain.StationID, votes int, verified bool, sourceURL string, now time.Time) (*Result, error) {
	if candidateID <= 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "result requires a candidate")
	}
	if votes < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "votes must not be negative")
	}
	return &Result{
		CandidateID:      candidateID,
		PollingStationID: stationID,
		Votes:            votes,
		Verified:         verified,
		SourceURL:        sourceURL,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// ResultKey is the uniqueness key of a result. Station 0 is the aggregate.
type ResultKey struct {
	CandidateID domain.CandidateID
	StationID   domain.StationID
}

func (r *Result) Key() ResultKey {
	k := ResultKey{CandidateID: r.CandidateID}
	if r.PollingStationID != nil {
		k.StationID = *r.PollingStationID
	}
	return k
}

// UpsertOutcome says what an upsert did to storage.
type UpsertOutcome int

const (
	Unchanged UpsertOutcome = iota
	Created
	Updated
	// Retained means a verified row kept its count against an unverified
	// tuple.
	Retained
)

func (o UpsertOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Retained:
		return "retained"
	default:
		return "unchanged"
	}
}

// ElectionFilter narrows ListElections. Zero values do not filter.
type ElectionFilter struct {
	ID         *domain.ElectionID
	ActiveOnly bool
	From       *time.Time
	To         *time.Time
}

func (f ElectionFilter) Matches(e Election) bool {
	if f.ID != nil && e.ID != *f.ID {
		return false
	}
	if f.ActiveOnly && !e.IsActive {
		return false
	}
	if f.From != nil && e.Date.Before(Day(*f.From)) {
		return false
	}
	if f.To != nil && e.Date.After(Day(*f.To)) {
		return false
	}
	return true
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
