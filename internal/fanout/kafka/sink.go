// Package kafka mirrors published fan-out events onto a Kafka topic so other
// consumers can follow the same stream as WebSocket subscribers.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/technerv/election-monitor/internal/fanout"
	"github.com/technerv/election-monitor/internal/fanout/metrics"
	"github.com/technerv/election-monitor/internal/platform/config"
)

// Sink is a fanout.Sink. Mirror hands records to the client's buffer with
// TryProduce, so a slow broker drops mirror records instead of stalling
// the hub.
type Sink struct {
	client  *kgo.Client
	topic   string
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewSink(cfg config.KafkaConfig, logger *slog.Logger, m *metrics.Metrics) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 1024
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.MaxBufferedRecords(buffer),
		kgo.ProducerLinger(50*time.Millisecond),
		kgo.RecordPartitioner(kgo.StickyKeyPartitioner(nil)),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sink{
		client:  client,
		topic:   cfg.Topic,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
		metrics: m,
	}, nil
}

// EnsureTopic creates the mirror topic when it does not exist.
func (s *Sink) EnsureTopic(ctx context.Context, partitions int32) error {
	if partitions <= 0 {
		partitions = 1
	}
	adm := kadm.NewClient(s.client)
	resp, err := adm.CreateTopics(ctx, partitions, -1, nil, s.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", s.topic, err)
	}
	for _, r := range resp.Sorted() {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", r.Topic, r.Err)
		}
	}
	return nil
}

// Mirror keys records by the event's first topic so events of one election
// land on one partition in publish order.
func (s *Sink) Mirror(ev fanout.Event) {
	value, err := json.Marshal(ev)
	if err != nil {
		s.metrics.IncMirrorFailure()
		return
	}
	var key []byte
	if len(ev.Topics) > 0 {
		key = []byte(ev.Topics[0])
	}
	rec := &kgo.Record{
		Key:   key,
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}
	s.client.TryProduce(s.ctx, rec, func(r *kgo.Record, err error) {
		if err != nil {
			s.metrics.IncMirrorFailure()
			s.logger.Warn("event mirror failed", "seq", ev.Seq, "type", ev.Type, "error", err)
		}
	})
}

// Close flushes buffered records within ctx and closes the client.
func (s *Sink) Close(ctx context.Context) error {
	err := s.client.Flush(ctx)
	s.cancel()
	s.client.Close()
	if err != nil {
		return fmt.Errorf("flush kafka mirror: %w", err)
	}
	return nil
}
