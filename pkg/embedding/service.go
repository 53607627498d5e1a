package embedding

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"
	"github.com/cloudwego/eino/components/embedding"

	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

// Service embeds text through the model, consulting the caches first
type Service struct {
	embedder embedding.Embedder
	model    string
	local    Cache
	shared   Cache
	logger   ectologger.Logger
}

// Option configures a Service
type Option func(*Service)

// WithLocalCache sets the in-process cache
func WithLocalCache(c Cache) Option {
	return func(s *Service) { s.local = c }
}

// WithSharedCache sets the cross-replica cache
func WithSharedCache(c Cache) Option {
	return func(s *Service) { s.shared = c }
}

// NewService creates a new embedding service. model namespaces cache keys.
func NewService(embedder embedding.Embedder, model string, logger ectologger.Logger, opts ...Option) *Service {
	s := &Service{
		embedder: embedder,
		model:    model,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Embed returns the vector for one text
func (s *Service) Embed(ctx context.Context, text string) ([]float64, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns one vector per text, in order. Only cache misses reach the model.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	ctx, span := tracing.StartSpan(ctx, "embedding.Service.EmbedBatch")
	defer span.End()

	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float64, len(texts))
	keys := make([]string, len(texts))
	var missing []int

	for i, text := range texts {
		keys[i] = CacheKey(s.model, text)
		if v, ok := s.lookup(ctx, keys[i]); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return vectors, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}

	embedded, err := s.embedder.EmbedStrings(ctx, pending)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, fmt.Errorf("embed %d texts: %w", len(pending), err)
	}
	if len(embedded) != len(pending) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(embedded), len(pending))
	}

	for j, i := range missing {
		vectors[i] = embedded[j]
		s.store(ctx, keys[i], embedded[j])
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"texts":  len(texts),
		"misses": len(missing),
	}).Debug("Embedded texts")

	return vectors, nil
}

func (s *Service) lookup(ctx context.Context, key string) ([]float64, bool) {
	if s.local != nil {
		v, ok := s.local.Get(ctx, key)
		metrics.RecordCacheLookup("local", ok)
		if ok {
			return v, true
		}
	}
	if s.shared != nil {
		v, ok := s.shared.Get(ctx, key)
		metrics.RecordCacheLookup("shared", ok)
		if ok {
			if s.local != nil {
				s.local.Set(ctx, key, v)
			}
			return v, true
		}
	}
	return nil, false
}

func (s *Service) store(ctx context.Context, key string, vector []float64) {
	if s.local != nil {
		s.local.Set(ctx, key, vector)
	}
	if s.shared != nil {
		s.shared.Set(ctx, key, vector)
	}
}
