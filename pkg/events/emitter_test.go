package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/pkg/models"
)

type published struct {
	key       string
	eventType string
	payload   any
}

type fakePublisher struct {
	events []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key, eventType string, payload any) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, published{key: key, eventType: eventType, payload: payload})
	return nil
}

func newTestEmitter(p Publisher) *Emitter {
	e := NewEmitter(p, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
	e.now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }
	return e
}

func TestEmitter_EmitDecisionMade(t *testing.T) {
	p := &fakePublisher{}
	e := newTestEmitter(p)

	record := models.DecisionRecord{ID: "rec-1", Decision: models.Decision{Kind: models.DecisionMerge, MatchID: "e-1"}}
	require.NoError(t, e.EmitDecisionMade(context.Background(), record))

	require.Len(t, p.events, 1)
	assert.Equal(t, "rec-1", p.events[0].key)
	assert.Equal(t, string(EventTypeDecisionMade), p.events[0].eventType)

	event, ok := p.events[0].payload.(DecisionMadeEvent)
	require.True(t, ok)
	assert.Equal(t, SchemaVersion, event.SchemaVersion)
	assert.Equal(t, record, event.Record)
	assert.Equal(t, 2024, event.Timestamp.Year())
}

func TestEmitter_OtherEvents(t *testing.T) {
	p := &fakePublisher{}
	e := newTestEmitter(p)
	ctx := context.Background()

	require.NoError(t, e.EmitEntityCreated(ctx, models.StoredEntity{ID: "e-9"}))
	require.NoError(t, e.EmitSettingsChanged(ctx, map[string]float64{"high": 0.85}, map[string]float64{"high": 0.9}))
	require.NoError(t, e.EmitIndexRebuilt(ctx, 42, 3))

	require.Len(t, p.events, 3)
	assert.Equal(t, "e-9", p.events[0].key)
	assert.Equal(t, string(EventTypeSettingsChanged), p.events[1].eventType)

	rebuilt := p.events[2].payload.(IndexRebuiltEvent)
	assert.Equal(t, 42, rebuilt.Entities)
	assert.Equal(t, uint64(3), rebuilt.Generation)
}

func TestEmitter_PropagatesPublishErrors(t *testing.T) {
	e := newTestEmitter(&fakePublisher{err: errors.New("broker down")})

	err := e.EmitDecisionMade(context.Background(), models.DecisionRecord{ID: "x"})
	require.ErrorContains(t, err, "broker down")
}
