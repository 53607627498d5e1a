package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/pkg/models"
)

var testLogger = ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})

type fakeStore struct {
	records []models.DecisionRecord
	err     error
}

func (f *fakeStore) Append(_ context.Context, record models.DecisionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type fakePublisher struct {
	records []models.DecisionRecord
	err     error
}

func (f *fakePublisher) EmitDecisionMade(_ context.Context, record models.DecisionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

func TestSink_WritesToEveryTarget(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	sink := NewSink(store, pub, testLogger)

	require.NoError(t, sink.Append(context.Background(), models.DecisionRecord{ID: "r1"}))
	assert.Len(t, store.records, 1)
	assert.Len(t, pub.records, 1)
}

func TestSink_FailureDoesNotStopOtherTargets(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	pub := &fakePublisher{}
	sink := NewSink(store, pub, testLogger)

	err := sink.Append(context.Background(), models.DecisionRecord{ID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Len(t, pub.records, 1)
}

func TestSink_JoinsFailures(t *testing.T) {
	sink := NewSink(&fakeStore{err: errors.New("db down")}, &fakePublisher{err: errors.New("broker down")}, testLogger)

	err := sink.Append(context.Background(), models.DecisionRecord{ID: "r1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Contains(t, err.Error(), "broker down")
}

func TestSink_OptionalTargets(t *testing.T) {
	sink := NewSink(nil, nil, testLogger)
	require.NoError(t, sink.Append(context.Background(), models.DecisionRecord{ID: "r1"}))
}
