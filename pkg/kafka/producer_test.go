package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := newProducer(w, "iris.decisions", testLogger)

	err := p.Publish(context.Background(), "rec-1", "decision.made", map[string]string{"decision": "merge"})
	require.NoError(t, err)

	require.Len(t, w.messages, 1)
	msg := w.messages[0]
	assert.Equal(t, "iris.decisions", msg.Topic)
	assert.Equal(t, []byte("rec-1"), msg.Key)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte("decision.made"), msg.Headers[0].Value)

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "merge", body["decision"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestProducer_PublishErrors(t *testing.T) {
	t.Run("writer error", func(t *testing.T) {
		p := newProducer(&fakeWriter{err: errors.New("broker down")}, "t", testLogger)
		err := p.Publish(context.Background(), "k", "e", struct{}{})
		require.ErrorContains(t, err, "broker down")
	})

	t.Run("unmarshalable payload", func(t *testing.T) {
		p := newProducer(&fakeWriter{}, "t", testLogger)
		err := p.Publish(context.Background(), "k", "e", make(chan int))
		require.Error(t, err)
	})
}

func TestNewProducer(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}, Topic: "iris.decisions", Compression: "none"}, testLogger)
	assert.Equal(t, "iris.decisions", p.Topic())
}
