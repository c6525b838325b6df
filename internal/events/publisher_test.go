package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/matchedge/internal/config"
	"github.com/yourusername/matchedge/internal/models"
)

type recordingWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func fixedPublisher(w MessageWriter) *Publisher {
	p := NewPublisherWithWriter(w, "outcomes", "artifacts")
	p.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestPublisherRecordOutcome(t *testing.T) {
	w := &recordingWriter{}
	p := fixedPublisher(w)

	outcome := &models.SettledOutcome{
		ID:        uuid.New(),
		MatchID:   "m-42",
		League:    "EPL",
		Raw:       models.Probabilities{0.4, 0.3, 0.3},
		Actual:    models.OutcomeAway,
		SettledAt: time.Now().UTC(),
	}
	require.NoError(t, p.RecordOutcome(context.Background(), outcome))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, "outcomes", msg.Topic)
	assert.Equal(t, []byte("m-42"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var env Envelope
	require.NoError(t, json.Unmarshal(msg.Value, &env))
	assert.Equal(t, TypeOutcomeSettled, env.Type)
	assert.True(t, env.OccurredAt.Equal(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)))

	var decoded models.SettledOutcome
	require.NoError(t, json.Unmarshal(env.Payload, &decoded))
	assert.Equal(t, models.OutcomeAway, decoded.Actual)
	assert.Equal(t, outcome.Raw, decoded.Raw)
}

func TestPublisherArtifactRecord(t *testing.T) {
	w := &recordingWriter{}
	p := fixedPublisher(w)

	record := &models.ArtifactRecord{ID: uuid.New(), League: "SerieA", Version: "abc", Status: models.ArtifactProduction}
	require.NoError(t, p.SaveArtifactRecord(context.Background(), record))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "artifacts", w.msgs[0].Topic)
	assert.Equal(t, []byte("SerieA"), w.msgs[0].Key)
}

func TestPublisherWrapsWriteErrors(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	p := fixedPublisher(w)

	err := p.SaveArtifactRecord(context.Background(), &models.ArtifactRecord{League: "EPL"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Contains(t, err.Error(), "artifacts")
}

func TestPublisherClose(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, fixedPublisher(w).Close())
	assert.True(t, w.closed)
}

func TestNewPublisherRequiresBrokers(t *testing.T) {
	_, err := NewPublisher(config.KafkaConfig{})
	assert.Error(t, err)

	p, err := NewPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, OutcomesTopic: "o", ArtifactsTopic: "a"})
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
