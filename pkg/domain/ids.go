package domain

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

// ReportID identifies a citizen report of either kind.
type ReportID uuid.UUID

// EventID identifies an appended verification event.
type EventID uuid.UUID

// Reference records keep the integer keys assigned by the election registry.
type (
	ElectionID     int64
	ConstituencyID int64
	StationID      int64
	CandidateID    int64
	ResultID       int64
)

func NewReportID() ReportID { return ReportID(uuid.New()) }
func NewEventID() EventID   { return EventID(uuid.New()) }

func (id ReportID) String() string { return uuid.UUID(id).String() }
func (id ReportID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id EventID) String() string  { return uuid.UUID(id).String() }

func (id ReportID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ReportID) UnmarshalText(b []byte) error {
	parsed, err := ParseReportID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id EventID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *EventID) UnmarshalText(b []byte) error {
	parsed, err := uuid.ParseBytes(b)
	if err != nil {
		return err
	}
	*id = EventID(parsed)
	return nil
}

// ParseReportID validates a report id at a trust boundary.
func ParseReportID(s string) (ReportID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ReportID{}, dErrors.New(dErrors.CodeInvalidInput, "report id is required")
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return ReportID{}, dErrors.New(dErrors.CodeInvalidInput, "invalid report id")
	}
	if parsed == uuid.Nil {
		return ReportID{}, dErrors.New(dErrors.CodeInvalidInput, "report id must not be nil")
	}
	return ReportID(parsed), nil
}

// ParseElectionID parses a positive election key.
func ParseElectionID(s string) (ElectionID, error) {
	n, err := parsePositive(s, "election id")
	return ElectionID(n), err
}

func (id ElectionID) String() string { return strconv.FormatInt(int64(id), 10) }

func parsePositive(s, field string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, field+" is required")
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid "+field)
	}
	return n, nil
}
