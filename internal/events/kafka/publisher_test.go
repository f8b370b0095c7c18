package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/models/events"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEncodesEvent(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisherWithWriter(w)

	event := events.TransferCompleted{
		TransferID: "t-1",
		FromEmail:  "ana@x.com",
		ToEmail:    "bo@x.com",
		Amount:     decimal.RequireFromString("12.34"),
		OccurredAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), events.TransferCompletedTopic, event.TransferID, event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, events.TransferCompletedTopic, msg.Topic)
	assert.Equal(t, []byte("t-1"), msg.Key)

	var decoded events.TransferCompleted
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "bo@x.com", decoded.ToEmail)
	assert.True(t, decoded.Amount.Equal(event.Amount))
}

func TestPublishReturnsWriterError(t *testing.T) {
	boom := errors.New("leader not available")
	p := newPublisherWithWriter(&recordingWriter{err: boom})

	err := p.Publish(context.Background(), "topic", "k", map[string]string{"a": "b"})
	assert.ErrorIs(t, err, boom)
}

func TestPublishRejectsUnencodableEvent(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisherWithWriter(w)

	err := p.Publish(context.Background(), "topic", "k", make(chan int))
	assert.Error(t, err)
	assert.Empty(t, w.msgs)
}

func TestWithTopicOverridesCallerTopic(t *testing.T) {
	w := &recordingWriter{}
	p := newPublisherWithWriter(w, WithTopic("ledger.transfers"))

	require.NoError(t, p.Publish(context.Background(), events.TransferCompletedTopic, "k", map[string]int{"n": 1}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "ledger.transfers", w.msgs[0].Topic)
}

func TestClose(t *testing.T) {
	w := &recordingWriter{}
	require.NoError(t, newPublisherWithWriter(w).Close())
	assert.True(t, w.closed)
}
