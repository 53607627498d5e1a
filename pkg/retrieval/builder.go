package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// EntitySource lists every stored entity
type EntitySource interface {
	ListAll(ctx context.Context) ([]models.StoredEntity, error)
}

// BatchEmbedder embeds texts in one call
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// Builder rebuilds an Index from the entity store
type Builder struct {
	source    EntitySource
	embedder  BatchEmbedder
	batchSize int
	logger    ectologger.Logger
}

// NewBuilder creates a new index builder
func NewBuilder(source EntitySource, embedder BatchEmbedder, batchSize int, logger ectologger.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &Builder{
		source:    source,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger,
	}
}

// Build lists all entities, embeds their text and returns a fresh Index
func (b *Builder) Build(ctx context.Context) (*Index, error) {
	ctx, span := tracing.StartSpan(ctx, "retrieval.Builder.Build")
	defer span.End()

	start := time.Now()
	entities, err := b.source.ListAll(ctx)
	if err != nil {
		b.logger.WithContext(ctx).WithError(err).Error("Failed to list entities for index build")
		return nil, fmt.Errorf("list entities: %w", err)
	}

	entries := make([]Entry, 0, len(entities))
	for offset := 0; offset < len(entities); offset += b.batchSize {
		end := min(offset+b.batchSize, len(entities))
		batch := entities[offset:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.Text()
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			b.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"offset": offset,
				"size":   len(batch),
			}).Error("Failed to embed entity batch")
			return nil, fmt.Errorf("embed entities %d-%d: %w", offset, end, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d entities", len(vectors), len(batch))
		}

		for i, e := range batch {
			entries = append(entries, Entry{ID: e.ID, Type: e.Type, Vector: vectors[i]})
		}
	}

	idx, err := NewIndex(entries)
	if err != nil {
		return nil, err
	}

	b.logger.WithContext(ctx).WithFields(map[string]any{
		"entities":  idx.Len(),
		"dimension": idx.Dimension(),
		"duration":  time.Since(start).String(),
	}).Info("Built retrieval index")

	return idx, nil
}
