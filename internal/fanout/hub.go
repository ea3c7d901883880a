// Package fanout delivers published domain events to connected subscribers by
// topic. Publish never blocks on delivery: each subscriber owns a bounded
// queue drained by its transport.
package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/technerv/election-monitor/internal/fanout/metrics"
)

const (
	defaultQueueSize      = 256
	defaultSnapshotWindow = time.Hour
	defaultSnapshotLimit  = 50
	defaultPruneInterval  = time.Minute
)

// Sink receives every published event after it has been sequenced. Mirror is
// called under the hub lock and must not block.
type Sink interface {
	Mirror(ev Event)
}

// Hub is the topic registry and fan-out engine. Publish, Subscribe,
// Unsubscribe and Disconnect are linearizable through one lock; network
// writes happen outside it in each transport's writer.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]*Subscriber
	byTopic map[Topic]map[string]*Subscriber
	history map[Topic][]Frame
	seq     uint64
	stopped bool

	queueSize      int
	policy         OverflowPolicy
	snapshotWindow time.Duration
	snapshotLimit  int
	pruneInterval  time.Duration
	sinks          []Sink

	clock   func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Hub)

func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

func WithOverflowPolicy(p OverflowPolicy) Option {
	return func(h *Hub) {
		if p == DropOldest || p == Disconnect {
			h.policy = p
		}
	}
}

// WithSnapshot sets how far back and how many events per topic a snapshot
// replays.
func WithSnapshot(window time.Duration, limit int) Option {
	return func(h *Hub) {
		if window > 0 {
			h.snapshotWindow = window
		}
		if limit > 0 {
			h.snapshotLimit = limit
		}
	}
}

func WithPruneInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pruneInterval = d
		}
	}
}

func WithSink(s Sink) Option {
	return func(h *Hub) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Hub) { h.clock = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func New(opts ...Option) *Hub {
	h := &Hub{
		subs:           make(map[string]*Subscriber),
		byTopic:        make(map[Topic]map[string]*Subscriber),
		history:        make(map[Topic][]Frame),
		queueSize:      defaultQueueSize,
		policy:         DropOldest,
		snapshotWindow: defaultSnapshotWindow,
		snapshotLimit:  defaultSnapshotLimit,
		pruneInterval:  defaultPruneInterval,
		clock:          time.Now,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the history pruning loop until ctx ends or Stop is called.
func (h *Hub) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()

	h.wg.Go(func() {
		ticker := time.NewTicker(h.pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.prune()
			}
		}
	})
}

// Stop closes every subscriber with ErrStopped and rejects later publishes.
// It is safe to call more than once.
func (h *Hub) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	cancel := h.cancel
	for id, sub := range h.subs {
		h.removeLocked(sub)
		if sub.close(ErrStopped) {
			h.metrics.IncDisconnect("stopped")
		}
		delete(h.subs, id)
	}
	h.metrics.SetSubscribers(0)
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
	h.logger.Info("fan-out hub stopped")
}

// Publish sequences ev and enqueues one frame per target topic to every
// subscriber of that topic. It never waits on a subscriber.
func (h *Hub) Publish(_ context.Context, ev Event) error {
	topics := dedupe(ev.Topics)
	if len(topics) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}

	h.seq++
	ev.Seq = h.seq
	ev.Topics = topics
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = h.clock()
	}
	h.metrics.IncPublished(string(ev.Type))

	var overflowed []*Subscriber
	for _, topic := range topics {
		frame := Frame{Type: string(ev.Type), Topic: topic, Payload: ev.Payload, Seq: ev.Seq, at: ev.OccurredAt}
		h.appendHistoryLocked(topic, frame)

		for _, sub := range h.byTopic[topic] {
			dropped, err := sub.enqueue(frame)
			if err != nil {
				overflowed = append(overflowed, sub)
				continue
			}
			if dropped {
				h.metrics.IncDropped()
			}
			h.metrics.IncDelivered(topicKind(topic))
		}
	}
	for _, sub := range overflowed {
		h.disconnectLocked(sub, ErrOverflow)
	}

	for _, sink := range h.sinks {
		sink.Mirror(ev)
	}
	return nil
}

// Connect registers a subscriber with no topics.
func (h *Hub) Connect(id string) (*Subscriber, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return nil, ErrStopped
	}
	if existing, ok := h.subs[id]; ok {
		h.disconnectLocked(existing, nil)
	}
	sub := newSubscriber(id, h.queueSize, h.policy)
	h.subs[id] = sub
	h.metrics.SetSubscribers(len(h.subs))
	return sub, nil
}

// Subscribe adds topics to sub. Topics it already holds are ignored. For the
// newly added topics exactly one snapshot frame is enqueued, before any live
// frame of those topics; its cursor is the subscribe time.
func (h *Hub) Subscribe(sub *Subscriber, topics []Topic) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return ErrStopped
	}
	if h.subs[sub.id] != sub || sub.isClosed() {
		return ErrClosed
	}

	var added []Topic
	for _, t := range dedupe(topics) {
		if _, ok := sub.topics[t]; !ok {
			added = append(added, t)
		}
	}
	if len(added) == 0 {
		return nil
	}

	snapshot, err := h.snapshotFrameLocked(added)
	if err != nil {
		return err
	}
	if _, err := sub.enqueue(snapshot); err != nil {
		h.disconnectLocked(sub, ErrOverflow)
		return err
	}

	for _, t := range added {
		sub.topics[t] = struct{}{}
		members, ok := h.byTopic[t]
		if !ok {
			members = make(map[string]*Subscriber)
			h.byTopic[t] = members
		}
		members[sub.id] = sub
	}
	return nil
}

// Unsubscribe removes topics from sub. After it returns no publish delivers
// a frame for those topics to sub.
func (h *Hub) Unsubscribe(sub *Subscriber, topics []Topic) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range topics {
		delete(sub.topics, t)
		if members, ok := h.byTopic[t]; ok && members[sub.id] == sub {
			delete(members, sub.id)
			if len(members) == 0 {
				delete(h.byTopic, t)
			}
		}
	}
}

// Disconnect removes sub from every topic and closes it.
func (h *Hub) Disconnect(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked(sub, nil)
}

// Send enqueues a control frame for sub, such as a pong or an error, so the
// transport keeps a single writer.
func (h *Hub) Send(sub *Subscriber, f Frame) error {
	_, err := sub.enqueue(f)
	if errors.Is(err, ErrOverflow) {
		h.mu.Lock()
		h.disconnectLocked(sub, ErrOverflow)
		h.mu.Unlock()
	}
	return err
}

// Topics returns the topics sub currently holds, sorted.
func (h *Hub) Topics(sub *Subscriber) []Topic {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Topic, 0, len(sub.topics))
	for t := range sub.topics {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) disconnectLocked(sub *Subscriber, reason error) {
	if h.subs[sub.id] == sub {
		delete(h.subs, sub.id)
	}
	h.removeLocked(sub)
	if sub.close(reason) && reason != nil {
		h.metrics.IncDisconnect(disconnectReason(reason))
		h.logger.Warn("subscriber disconnected by hub",
			"subscriber_id", sub.id,
			"reason", reason,
			"dropped", sub.Dropped(),
		)
	}
	h.metrics.SetSubscribers(len(h.subs))
}

func (h *Hub) removeLocked(sub *Subscriber) {
	for t := range sub.topics {
		if members, ok := h.byTopic[t]; ok && members[sub.id] == sub {
			delete(members, sub.id)
			if len(members) == 0 {
				delete(h.byTopic, t)
			}
		}
	}
	clear(sub.topics)
}

func (h *Hub) appendHistoryLocked(topic Topic, f Frame) {
	entries := append(h.history[topic], f)
	if over := len(entries) - h.snapshotLimit; over > 0 {
		entries = slices.Delete(entries, 0, over)
	}
	h.history[topic] = entries
}

func (h *Hub) snapshotFrameLocked(topics []Topic) (Frame, error) {
	now := h.clock()
	cutoff := now.Add(-h.snapshotWindow)

	events := make([]Frame, 0)
	for _, t := range topics {
		for _, f := range h.history[t] {
			if !f.at.Before(cutoff) {
				events = append(events, f)
			}
		}
	}
	slices.SortStableFunc(events, func(a, b Frame) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})

	raw, err := json.Marshal(Snapshot{Cursor: now, Topics: topics, Events: events})
	if err != nil {
		return Frame{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return Frame{Type: FrameSnapshot, Payload: raw, at: now}, nil
}

func (h *Hub) prune() {
	h.mu.Lock()
	defer h.mu.Unlock()
	cutoff := h.clock().Add(-h.snapshotWindow)
	for t, entries := range h.history {
		i := 0
		for i < len(entries) && entries[i].at.Before(cutoff) {
			i++
		}
		if i == len(entries) {
			delete(h.history, t)
			continue
		}
		h.history[t] = slices.Delete(entries, 0, i)
	}
}

func dedupe(topics []Topic) []Topic {
	out := make([]Topic, 0, len(topics))
	for _, t := range topics {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

func topicKind(t Topic) string {
	kind, _, _ := strings.Cut(string(t), ":")
	return kind
}

func disconnectReason(err error) string {
	switch {
	case errors.Is(err, ErrOverflow):
		return "overflow"
	case errors.Is(err, ErrStopped):
		return "stopped"
	default:
		return "other"
	}
}
