// Package kafka publishes domain events to Kafka-compatible brokers.
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

	"tradegate/pkg/platform/circuit"
	"tradegate/pkg/platform/sentinel"
	"tradegate/pkg/requestcontext"
)

// Producer writes JSON events synchronously. Failures are returned to the
// caller and tracked by a breaker so health checks can report a degraded bus.
type Producer struct {
	client   *kgo.Client
	breaker  *circuit.Breaker
	logger   *slog.Logger
	clientID string
	timeout  time.Duration
}

type Option func(*Producer)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Producer) {
		p.logger = logger
	}
}

// WithClientID sets the client id reported to brokers.
func WithClientID(clientID string) Option {
	return func(p *Producer) {
		if clientID != "" {
			p.clientID = clientID
		}
	}
}

// WithTimeout bounds each produce call.
func WithTimeout(d time.Duration) Option {
	return func(p *Producer) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// NewProducer connects to the seed brokers.
func NewProducer(brokers []string, opts ...Option) (*Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no seed brokers")
	}
	p := &Producer{
		breaker:  circuit.New("kafka", circuit.WithFailureThreshold(3), circuit.WithSuccessThreshold(1)),
		logger:   slog.Default(),
		clientID: "tradegate",
		timeout:  5 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(p.clientID),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	p.client = client
	return p, nil
}

// Publish encodes payload as JSON and produces it to topic, keyed by key.
func (p *Producer) Publish(ctx context.Context, topic, key string, payload any) error {
	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: "request_id", Value: []byte(requestID)})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if _, change := p.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "event bus degraded",
				"breaker", p.breaker.Name(),
				"topic", topic,
				"error", err,
			)
		}
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "event bus recovered", "breaker", p.breaker.Name())
	}
	return nil
}

// EnsureTopics creates topics that do not exist yet.
func (p *Producer) EnsureTopics(ctx context.Context, partitions int32, replicationFactor int16, topics ...string) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicationFactor, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for topic, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, r.Err)
		}
	}
	return nil
}

// Health reports an unavailable bus while the breaker is open, otherwise
// pings the cluster.
func (p *Producer) Health(ctx context.Context) error {
	if p.breaker.IsOpen() {
		return sentinel.ErrUnavailable
	}
	return p.client.Ping(ctx)
}

// Close shuts down the client.
func (p *Producer) Close() {
	p.client.Close()
}
