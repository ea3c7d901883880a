package fanout

import (
	"strings"

	"github.com/technerv/election-monitor/pkg/domain"
	dErrors "github.com/technerv/election-monitor/pkg/domain-errors"
)

// Topic is a named channel. Valid forms are election:<id>, live:all and
// incidents:all.
type Topic string

const (
	TopicLive      Topic = "live:all"
	TopicIncidents Topic = "incidents:all"

	electionPrefix = "election:"
)

func ElectionTopic(id domain.ElectionID) Topic {
	return Topic(electionPrefix + id.String())
}

// ParseTopic validates a client-supplied topic name.
func ParseTopic(s string) (Topic, error) {
	s = strings.TrimSpace(s)
	switch Topic(s) {
	case TopicLive, TopicIncidents:
		return Topic(s), nil
	}
	if rest, ok := strings.CutPrefix(s, electionPrefix); ok {
		id, err := domain.ParseElectionID(rest)
		if err != nil {
			return "", dErrors.New(dErrors.CodeValidation, "invalid topic: "+s)
		}
		return ElectionTopic(id), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "unknown topic: "+s)
}

// ParseTopics validates a list, dropping duplicates and keeping order.
func ParseTopics(raw []string) ([]Topic, error) {
	if len(raw) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "topics must not be empty")
	}
	seen := make(map[Topic]struct{}, len(raw))
	out := make([]Topic, 0, len(raw))
	for _, s := range raw {
		t, err := ParseTopic(s)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// StationTopics targets station update events.
func StationTopics(electionID domain.ElectionID) []Topic {
	return []Topic{ElectionTopic(electionID), TopicLive}
}

// IncidentTopics targets incident events.
func IncidentTopics() []Topic {
	return []Topic{TopicIncidents, TopicLive}
}

// ResultTopics targets result.updated events.
func ResultTopics(electionID domain.ElectionID) []Topic {
	return []Topic{ElectionTopic(electionID), TopicLive}
}
