// Package audit fans decision records out to the history store and the event stream
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// RecordStore persists decision records
type RecordStore interface {
	Append(ctx context.Context, record models.DecisionRecord) error
}

// DecisionPublisher publishes decision records
type DecisionPublisher interface {
	EmitDecisionMade(ctx context.Context, record models.DecisionRecord) error
}

// Sink writes every record to each configured target. Either target may be nil.
type Sink struct {
	store     RecordStore
	publisher DecisionPublisher
	logger    ectologger.Logger
}

// NewSink creates a new audit sink
func NewSink(store RecordStore, publisher DecisionPublisher, logger ectologger.Logger) *Sink {
	return &Sink{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Append writes the record to every target. A failing target does not stop the others;
// all failures are joined into the returned error.
func (s *Sink) Append(ctx context.Context, record models.DecisionRecord) error {
	ctx, span := tracing.StartSpan(ctx, "audit.Sink.Append")
	defer span.End()

	var errs []error

	if s.store != nil {
		if err := s.store.Append(ctx, record); err != nil {
			metrics.RecordAuditFailure("store")
			errs = append(errs, fmt.Errorf("store: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.EmitDecisionMade(ctx, record); err != nil {
			metrics.RecordAuditFailure("events")
			errs = append(errs, fmt.Errorf("events: %w", err))
		}
	}

	if len(errs) > 0 {
		err := errors.Join(errs...)
		tracing.RecordError(span, err)
		return err
	}

	s.logger.WithContext(ctx).WithField("record_id", record.ID).Debug("Audited decision")
	return nil
}
