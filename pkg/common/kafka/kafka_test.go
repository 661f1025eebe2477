package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/risk-gateway/pkg/common/logger"
	"github.com/synaptica-ai/risk-gateway/pkg/common/models"
)

func init() {
	logger.Discard()
}

type fakeWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func sampleRecord() models.SessionRecord {
	return models.SessionRecord{
		ID:              "s-1",
		CreatedAt:       time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
		ModelVersion:    "heart-v1",
		PatientFeatures: models.PatientFeatures{Age: 61},
		RiskLabel:       models.LabelHigh,
		RiskScore:       0.81,
		Contribs:        map[string]float64{"age": 0.2},
	}
}

func TestPublishSessionWritesEnvelope(t *testing.T) {
	writer := &fakeWriter{}
	p := &Producer{writer: writer, topic: "risk.predictions"}

	require.NoError(t, p.PublishSession(context.Background(), "risk-gateway", sampleRecord()))
	require.Len(t, writer.messages, 1)

	var event models.Event
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &event))
	assert.Equal(t, models.EventPredictionRecorded, event.Type)
	assert.Equal(t, "risk-gateway", event.Source)
	assert.Equal(t, "s-1", event.Data["id"])
	assert.Equal(t, 0.81, event.Data["riskScore"])
	assert.Equal(t, event.ID, string(writer.messages[0].Key))
}

func TestPublishEventReturnsWriterError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t"}
	assert.Error(t, p.PublishEvent(context.Background(), "x", "y", nil))
}

func TestConsumeCommitsHandledAndMalformed(t *testing.T) {
	good, err := json.Marshal(models.Event{ID: "e-1", Type: models.EventPredictionRecorded})
	require.NoError(t, err)
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: []byte("not json")},
		{Offset: 2, Value: good},
	}}
	c := &Consumer{reader: reader}

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	err = c.Consume(ctx, func(ctx context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"e-1"}, handled)

	var offsets []int64
	for _, m := range reader.committed {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int64{1, 2}, offsets)
}

func TestConsumeSkipsCommitOnHandlerError(t *testing.T) {
	good, err := json.Marshal(models.Event{ID: "e-1"})
	require.NoError(t, err)
	reader := &fakeReader{queue: []kafka.Message{{Offset: 7, Value: good}}}
	c := &Consumer{reader: reader}

	ctx, cancel := context.WithCancel(context.Background())
	err = c.Consume(ctx, func(ctx context.Context, event models.Event) error {
		cancel()
		return errors.New("store down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.committed)
}

func TestConsumeRetriesFailedMessageBeforeNext(t *testing.T) {
	first, err := json.Marshal(models.Event{ID: "e-1"})
	require.NoError(t, err)
	second, err := json.Marshal(models.Event{ID: "e-2"})
	require.NoError(t, err)
	reader := &fakeReader{queue: []kafka.Message{
		{Offset: 7, Value: first},
		{Offset: 8, Value: second},
	}}
	c := &Consumer{reader: reader}

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	failed := false
	err = c.Consume(ctx, func(ctx context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		if event.ID == "e-1" && !failed {
			failed = true
			return errors.New("store down")
		}
		if event.ID == "e-2" {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"e-1", "e-1", "e-2"}, handled)

	var offsets []int64
	for _, m := range reader.committed {
		offsets = append(offsets, m.Offset)
	}
	assert.Equal(t, []int64{7, 8}, offsets)
}
