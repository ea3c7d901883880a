package fanout

import (
	"encoding/json"
	"fmt"
	"time"
)

type EventType string

const (
	EventReportCreated       EventType = "report.created"
	EventReportStatusChanged EventType = "report.verified_status_changed"
	EventIncidentResponded   EventType = "incident.responded"
	EventResultUpdated       EventType = "result.updated"
)

// Event is what a service hands to the hub. Payload is encoded once at
// construction so history and every subscriber share the same bytes.
type Event struct {
	Seq        uint64          `json:"seq"`
	Type       EventType       `json:"type"`
	Topics     []Topic         `json:"topics"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEvent(typ EventType, topics []Topic, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Event{Type: typ, Topics: topics, Payload: raw, OccurredAt: at}, nil
}

const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Frame is one message on a subscriber's outbound queue. Event frames carry
// Type, Topic and Payload; control replies carry Op.
type Frame struct {
	Op      string          `json:"op,omitempty"`
	Type    string          `json:"type,omitempty"`
	Topic   Topic           `json:"topic,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Seq     uint64          `json:"seq,omitempty"`

	at time.Time
}

// Snapshot is the payload of the frame sent once per subscribe call.
type Snapshot struct {
	Cursor time.Time `json:"cursor"`
	Topics []Topic   `json:"topics"`
	Events []Frame   `json:"events"`
}

func ErrorFrame(message string) Frame {
	raw, _ := json.Marshal(map[string]string{"message": message})
	return Frame{Type: FrameError, Payload: raw}
}

func PongFrame() Frame {
	return Frame{Op: "pong"}
}
