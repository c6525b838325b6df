// Package events publishes settled outcomes and artifact lifecycle changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/segmentio/kafka-go"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

// Event types carried in the envelope.
const (
	TypeOutcomeSettled = "outcome.settled"
	TypeArtifactStatus = "artifact.status"
)

var publishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "matchedge_events_published_total",
		Help: "Events written to Kafka by topic and result",
	},
	[]string{"topic", "result"},
)

// Envelope wraps every published payload.
type Envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// MessageWriter is the subset of *kafka.Writer used by the publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes outcome and artifact events.
type Publisher struct {
	writer         MessageWriter
	outcomesTopic  string
	artifactsTopic string
	now            func() time.Time
}

// NewPublisher builds a Kafka writer from configuration. Messages are hashed
// by key so all events of a match or league land on one partition.
func NewPublisher(cfg config.KafkaConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	batchTimeout := time.Duration(cfg.BatchTimeoutMs) * time.Millisecond
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		BatchTimeout: batchTimeout,
	}

	return NewPublisherWithWriter(writer, cfg.OutcomesTopic, cfg.ArtifactsTopic), nil
}

// NewPublisherWithWriter wraps an existing writer.
func NewPublisherWithWriter(w MessageWriter, outcomesTopic, artifactsTopic string) *Publisher {
	return &Publisher{
		writer:         w,
		outcomesTopic:  outcomesTopic,
		artifactsTopic: artifactsTopic,
		now:            time.Now,
	}
}

// RecordOutcome publishes a settled outcome keyed by match id.
func (p *Publisher) RecordOutcome(ctx context.Context, outcome *models.SettledOutcome) error {
	return p.publish(ctx, p.outcomesTopic, outcome.MatchID, TypeOutcomeSettled, outcome)
}

// SaveArtifactRecord publishes an artifact status change keyed by league.
func (p *Publisher) SaveArtifactRecord(ctx context.Context, record *models.ArtifactRecord) error {
	return p.publish(ctx, p.artifactsTopic, record.League, TypeArtifactStatus, record)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func (p *Publisher) publish(ctx context.Context, topic, key, eventType string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	now := p.now().UTC()
	value, err := json.Marshal(Envelope{Type: eventType, OccurredAt: now, Payload: body})
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  now,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	})
	if err != nil {
		publishedTotal.WithLabelValues(topic, "error").Inc()
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	publishedTotal.WithLabelValues(topic, "ok").Inc()
	return nil
}
