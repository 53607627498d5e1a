// Package events handles event emission for disambiguation outcomes
package events

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher writes a keyed event. Satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, key, eventType string, payload any) error
}

// Emitter handles event emission for iris
type Emitter struct {
	publisher Publisher
	logger    ectologger.Logger
	now       func() time.Time
}

// NewEmitter creates a new event emitter
func NewEmitter(publisher Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (e *Emitter) base(ctx context.Context, t EventType) BaseEvent {
	return BaseEvent{
		EventType:     t,
		SchemaVersion: SchemaVersion,
		Timestamp:     e.now().UTC(),
		TraceID:       tracing.GetTraceID(ctx),
	}
}

func (e *Emitter) emit(ctx context.Context, key string, t EventType, payload any) error {
	if err := e.publisher.Publish(ctx, key, string(t), payload); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", t)
		return err
	}
	return nil
}

// EmitDecisionMade emits a decision record. The record id is the partition key.
func (e *Emitter) EmitDecisionMade(ctx context.Context, record models.DecisionRecord) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitDecisionMade")
	defer span.End()

	return e.emit(ctx, record.ID, EventTypeDecisionMade, DecisionMadeEvent{
		BaseEvent: e.base(ctx, EventTypeDecisionMade),
		Record:    record,
	})
}

// EmitEntityCreated emits an entity created event
func (e *Emitter) EmitEntityCreated(ctx context.Context, entity models.StoredEntity) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityCreated")
	defer span.End()

	return e.emit(ctx, entity.ID, EventTypeEntityCreated, EntityCreatedEvent{
		BaseEvent: e.base(ctx, EventTypeEntityCreated),
		Entity:    entity,
	})
}

// EmitSettingsChanged emits a reconfiguration event
func (e *Emitter) EmitSettingsChanged(ctx context.Context, previous, current any) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitSettingsChanged")
	defer span.End()

	return e.emit(ctx, "settings", EventTypeSettingsChanged, SettingsChangedEvent{
		BaseEvent: e.base(ctx, EventTypeSettingsChanged),
		Previous:  previous,
		Current:   current,
	})
}

// EmitIndexRebuilt emits an index rebuilt event
func (e *Emitter) EmitIndexRebuilt(ctx context.Context, entities int, generation uint64) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitIndexRebuilt")
	defer span.End()

	return e.emit(ctx, "index", EventTypeIndexRebuilt, IndexRebuiltEvent{
		BaseEvent:  e.base(ctx, EventTypeIndexRebuilt),
		Entities:   entities,
		Generation: generation,
	})
}
