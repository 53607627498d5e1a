package disambiguation

import (
	"context"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/retrieval"
)

// Embedder turns text into a vector. Satisfied by *embedding.Service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Retriever shortlists candidates: typed hits above minSimilarity, else a global search.
// The guarded snapshot is a *retrieval.Index.
type Retriever interface {
	SearchWithFallback(query []float64, entityType string, k int, minSimilarity float64) []retrieval.Hit
}

var _ Retriever = (*retrieval.Index)(nil)

// Reranker scores a (query, candidate) text pair. The score is unbounded.
type Reranker interface {
	Score(ctx context.Context, query, candidate string) (float64, error)
}

// StringMatcher computes surface similarity in [0,1]. Satisfied by *matching.Scorer.
type StringMatcher interface {
	FuzzyRatio(a, b string) float64
	EditSimilarity(a, b string) float64
}

// EntityStore materializes candidates. Get returns nil, nil when the entity does not exist.
type EntityStore interface {
	Get(ctx context.Context, id string) (*models.StoredEntity, error)
}

// EntityWriter persists new entities
type EntityWriter interface {
	Create(ctx context.Context, descriptor models.EntityDescriptor) (*models.StoredEntity, error)
}

// IndexBuilder produces a full index snapshot. Satisfied by *retrieval.Builder.
type IndexBuilder interface {
	Build(ctx context.Context) (*retrieval.Index, error)
}

// AuditSink records one decision per request
type AuditSink interface {
	Append(ctx context.Context, record models.DecisionRecord) error
}

// HistoryStore reads audited decisions back
type HistoryStore interface {
	List(ctx context.Context, limit int) ([]models.DecisionRecord, error)
	Stats(ctx context.Context, window int) (models.DecisionStats, error)
}

// EventEmitter publishes lifecycle events. Satisfied by *events.Emitter.
type EventEmitter interface {
	EmitEntityCreated(ctx context.Context, entity models.StoredEntity) error
	EmitSettingsChanged(ctx context.Context, previous, current any) error
	EmitIndexRebuilt(ctx context.Context, entities int, generation uint64) error
}
