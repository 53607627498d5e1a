// Package disambiguation orchestrates candidate retrieval, signal scoring and classification
// into a merge, create or ambiguous decision.
package disambiguation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ramsey-B/iris/pkg/decision"
	"github.com/Ramsey-B/iris/pkg/indexguard"
	"github.com/Ramsey-B/iris/pkg/matching"
	"github.com/Ramsey-B/iris/pkg/metrics"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/retrieval"
	"github.com/Ramsey-B/iris/pkg/tracing"
)

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
	StatsWindow         = 1000
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var errIndexNotLoaded = errors.New("index not loaded")

// Dependencies are the collaborators of the service.
// Writer, Builder, Audit, History and Events are optional.
type Dependencies struct {
	Embedder Embedder
	Reranker Reranker
	Matcher  StringMatcher
	Store    EntityStore
	Writer   EntityWriter
	Builder  IndexBuilder
	Audit    AuditSink
	History  HistoryStore
	Events   EventEmitter
	Guard    *indexguard.Guard[retrieval.Index]
}

// Service makes disambiguation decisions against the guarded index snapshot
type Service struct {
	embedder Embedder
	reranker Reranker
	matcher  StringMatcher
	store    EntityStore
	writer   EntityWriter
	builder  IndexBuilder
	audit    AuditSink
	history  HistoryStore
	events   EventEmitter
	guard    *indexguard.Guard[retrieval.Index]

	engine atomic.Pointer[engine]
	log    ectologger.Logger
	now    func() time.Time
	newID  func() string
}

// NewService creates a new disambiguation service
func NewService(deps Dependencies, settings Settings, logger ectologger.Logger) (*Service, error) {
	switch {
	case deps.Embedder == nil:
		return nil, fmt.Errorf("embedder is required")
	case deps.Reranker == nil:
		return nil, fmt.Errorf("reranker is required")
	case deps.Matcher == nil:
		return nil, fmt.Errorf("string matcher is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("entity store is required")
	case deps.Guard == nil:
		return nil, fmt.Errorf("index guard is required")
	}

	eng, err := newEngine(settings)
	if err != nil {
		return nil, err
	}

	s := &Service{
		embedder: deps.Embedder,
		reranker: deps.Reranker,
		matcher:  deps.Matcher,
		store:    deps.Store,
		writer:   deps.Writer,
		builder:  deps.Builder,
		audit:    deps.Audit,
		history:  deps.History,
		events:   deps.Events,
		guard:    deps.Guard,
		log:      logger,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	s.engine.Store(eng)
	return s, nil
}

// Settings returns the active settings
func (s *Service) Settings() Settings {
	return s.engine.Load().settings
}

// IndexStatus reports whether a snapshot is loaded and how many have been installed
func (s *Service) IndexStatus() (loaded bool, generation uint64) {
	return s.guard.Loaded(), s.guard.Generation()
}

// Decide classifies an incoming entity against the indexed entities. Signal failures
// degrade to neutral and never fail the request. The decision is audited best-effort.
func (s *Service) Decide(ctx context.Context, entity models.EntityDescriptor, force bool, topK int) (*models.Decision, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.Decide")
	defer span.End()

	start := time.Now()
	eng := s.engine.Load()

	candidates, err := s.scoreCandidates(ctx, eng, entity, topK)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	scored := make([]models.ScoredCandidate, len(candidates))
	for i, c := range candidates {
		scored[i] = c.scored()
	}
	decision.Rank(scored)

	result := eng.classifier.Classify(scored, force)
	if result.Score != nil && len(result.Score.Raw.Unavailable) > 0 {
		result.Reasoning += "; " + degradedNote(result.Score.Raw.Unavailable)
	}

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"entity_name": entity.Name,
		"entity_type": entity.Type,
		"decision":    result.Kind,
		"match_id":    result.MatchID,
		"candidates":  len(scored),
		"forced":      result.Forced,
	})

	if s.audit != nil {
		record := models.DecisionRecord{
			ID:         s.newID(),
			Input:      entity,
			Decision:   result,
			Candidates: scored,
			CreatedAt:  s.now().UTC(),
		}
		// a client disconnect must not drop the record; a stuck sink must not hold the response
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eng.settings.SignalTimeout)
		err := s.audit.Append(auditCtx, record)
		cancel()
		if err != nil {
			log.WithError(err).Warn("Failed to audit decision")
		}
	}

	metrics.RecordDecision(string(result.Kind), result.Forced, time.Since(start).Seconds())
	log.Info("Made disambiguation decision")

	return &result, nil
}

// MatchCandidates returns every shortlisted candidate ranked by final score, with a
// human-readable summary of its signals. Nothing is audited.
func (s *Service) MatchCandidates(ctx context.Context, entity models.EntityDescriptor, topK int) ([]models.CandidateMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.MatchCandidates")
	defer span.End()

	candidates, err := s.scoreCandidates(ctx, s.engine.Load(), entity, topK)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return decision.Less(candidates[i].scored(), candidates[j].scored())
	})

	matches := make([]models.CandidateMatch, len(candidates))
	for i, c := range candidates {
		matches[i] = models.CandidateMatch{
			Entity:            c.entity,
			Score:             c.score,
			Rank:              i + 1,
			SimilarityDetails: similarityDetails(entity, c.entity, c.score),
		}
	}
	return matches, nil
}

// History lists the most recent decisions, newest first. A zero limit uses the default.
func (s *Service) History(ctx context.Context, limit int) ([]models.DecisionRecord, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.History")
	defer span.End()

	if s.history == nil {
		return nil, fmt.Errorf("%w: decision history", ErrNotConfigured)
	}
	if limit == 0 {
		limit = DefaultHistoryLimit
	}
	if limit < 1 || limit > MaxHistoryLimit {
		return nil, fmt.Errorf("%w: %d is outside [1, %d]", ErrInvalidLimit, limit, MaxHistoryLimit)
	}
	return s.history.List(ctx, limit)
}

// Stats summarizes the most recent StatsWindow decisions
func (s *Service) Stats(ctx context.Context) (models.DecisionStats, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.Stats")
	defer span.End()

	if s.history == nil {
		return models.DecisionStats{}, fmt.Errorf("%w: decision history", ErrNotConfigured)
	}
	return s.history.Stats(ctx, StatsWindow)
}

// RebuildIndex builds a fresh snapshot from the entity store and swaps it in.
// Readers keep using the old snapshot until the swap.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.RebuildIndex")
	defer span.End()

	if s.builder == nil {
		return 0, fmt.Errorf("%w: index builder", ErrNotConfigured)
	}

	log := s.log.WithContext(ctx)
	start := time.Now()

	size := 0
	err := s.guard.Rebuild(ctx, func(ctx context.Context) (*retrieval.Index, error) {
		idx, err := s.builder.Build(ctx)
		if err != nil {
			return nil, err
		}
		if idx == nil {
			return nil, fmt.Errorf("builder returned no index")
		}
		size = idx.Len()
		return idx, nil
	})
	if err != nil {
		metrics.RecordIndexRebuild("failure", 0)
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to rebuild index")
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	generation := s.guard.Generation()
	metrics.RecordIndexRebuild("success", size)
	log.WithFields(map[string]any{
		"entities":   size,
		"generation": generation,
		"duration":   time.Since(start).String(),
	}).Info("Rebuilt index")

	s.emit(ctx, "index.rebuilt", func(e EventEmitter) error {
		return e.EmitIndexRebuilt(ctx, size, generation)
	})

	return size, nil
}

// AddEntity stores a new entity and adds it to the live index. When no snapshot is
// loaded yet the entity is only stored; the next rebuild indexes it.
func (s *Service) AddEntity(ctx context.Context, descriptor models.EntityDescriptor) (*models.StoredEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.AddEntity")
	defer span.End()

	if s.writer == nil {
		return nil, fmt.Errorf("%w: entity writer", ErrNotConfigured)
	}
	if err := validateEntity(descriptor); err != nil {
		return nil, err
	}

	eng := s.engine.Load()
	embedCtx, cancel := context.WithTimeout(ctx, eng.settings.SignalTimeout)
	vector, err := s.embedder.Embed(embedCtx, descriptor.Text())
	cancel()
	if err != nil {
		metrics.RecordSignalFailure(string(models.SignalSemantic))
		return nil, fmt.Errorf("%w: embed entity: %v", ErrSignalUnavailable, err)
	}

	stored, err := s.writer.Create(ctx, descriptor)
	if err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	log := s.log.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   stored.ID,
		"entity_type": stored.Type,
	})

	err = s.guard.Update(ctx, func(_ context.Context, current *retrieval.Index) (*retrieval.Index, error) {
		if current == nil {
			return nil, errIndexNotLoaded
		}
		return current.With(retrieval.Entry{ID: stored.ID, Type: stored.Type, Vector: vector})
	})
	switch {
	case errors.Is(err, errIndexNotLoaded):
		log.Warn("Index not loaded, entity will be indexed on the next rebuild")
	case err != nil:
		tracing.RecordError(span, err)
		log.WithError(err).Error("Stored entity but failed to index it")
		return nil, fmt.Errorf("index entity %s: %w", stored.ID, err)
	default:
		metrics.IndexSize.Inc()
		log.Info("Added entity")
	}

	s.emit(ctx, "entity.created", func(e EventEmitter) error {
		return e.EmitEntityCreated(ctx, *stored)
	})

	return stored, nil
}

// Reconfigure validates and swaps the engine settings. The swap holds the guard's
// exclusive permit so no decision observes a mix of old and new settings.
func (s *Service) Reconfigure(ctx context.Context, settings Settings) (Settings, error) {
	ctx, span := tracing.StartSpan(ctx, "disambiguation.Service.Reconfigure")
	defer span.End()

	next, err := newEngine(settings)
	if err != nil {
		return Settings{}, err
	}

	var previous *engine
	err = s.guard.Exclusive(ctx, func(context.Context) error {
		previous = s.engine.Swap(next)
		return nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		return Settings{}, fmt.Errorf("reconfigure: %w", err)
	}

	s.log.WithContext(ctx).WithFields(map[string]any{
		"previous_high":  previous.settings.Thresholds.High,
		"previous_low":   previous.settings.Thresholds.Low,
		"high":           next.settings.Thresholds.High,
		"low":            next.settings.Thresholds.Low,
		"force_policy":   next.settings.ForcePolicy,
		"normalization":  next.settings.Normalization,
		"signal_timeout": next.settings.SignalTimeout.String(),
	}).Info("Reconfigured decision engine")

	s.emit(ctx, "settings.changed", func(e EventEmitter) error {
		return e.EmitSettingsChanged(ctx, previous.settings, next.settings)
	})

	return next.settings, nil
}

// candidate is a materialized, scored shortlist entry
type candidate struct {
	entity models.StoredEntity
	score  models.CompositeScore
}

func (c candidate) scored() models.ScoredCandidate {
	return models.ScoredCandidate{ID: c.entity.ID, CreatedAt: c.entity.CreatedAt, Score: c.score}
}

func (s *Service) scoreCandidates(ctx context.Context, eng *engine, entity models.EntityDescriptor, topK int) ([]candidate, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}
	if topK < 1 {
		topK = eng.settings.DefaultTopK
	}

	query := entity.Text()
	log := s.log.WithContext(ctx)

	embedCtx, cancel := context.WithTimeout(ctx, eng.settings.SignalTimeout)
	vector, err := s.embedder.Embed(embedCtx, query)
	cancel()
	if err != nil {
		metrics.RecordSignalFailure(string(models.SignalSemantic))
		log.WithError(err).Warn("Failed to embed query")
		return nil, fmt.Errorf("%w: embed query: %v", ErrSignalUnavailable, err)
	}

	var hits []retrieval.Hit
	err = s.guard.WithReadAccess(ctx, func(_ context.Context, idx *retrieval.Index) error {
		hits = idx.SearchWithFallback(vector, entity.Type, topK, eng.settings.MinSimilarity)
		return nil
	})
	if err != nil {
		if errors.Is(err, indexguard.ErrIndexUnavailable) {
			metrics.IndexUnavailableTotal.Inc()
		}
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	results := make([]*candidate, len(hits))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(eng.settings.Concurrency)

	for i, hit := range hits {
		g.Go(func() error {
			storeCtx, cancel := context.WithTimeout(gctx, eng.settings.SignalTimeout)
			stored, err := s.store.Get(storeCtx, hit.ID)
			cancel()
			if err != nil {
				return fmt.Errorf("load candidate %s: %w", hit.ID, err)
			}
			if stored == nil {
				log.WithField("entity_id", hit.ID).Warn("Indexed entity missing from store, skipping")
				return nil
			}

			raw := s.measure(gctx, eng, entity, query, *stored, hit.Similarity)
			results[i] = &candidate{
				entity: *stored,
				score:  eng.scorer.Score(raw, entity.Type, stored.Type),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0, len(results))
	for _, c := range results {
		if c != nil {
			candidates = append(candidates, *c)
		}
	}
	return candidates, nil
}

// measure collects the raw signals for one pair. A failing signal is marked unavailable
// and later normalized to neutral.
func (s *Service) measure(ctx context.Context, eng *engine, query models.EntityDescriptor, queryText string, cand models.StoredEntity, similarity float64) models.RawSignalSet {
	raw := models.RawSignalSet{Semantic: similarity}
	log := s.log.WithContext(ctx).WithField("entity_id", cand.ID)

	rerankCtx, cancel := context.WithTimeout(ctx, eng.settings.SignalTimeout)
	score, err := s.reranker.Score(rerankCtx, queryText, cand.Text())
	cancel()
	if err != nil {
		raw.MarkUnavailable(models.SignalReranker)
		metrics.RecordSignalFailure(string(models.SignalReranker))
		log.WithError(err).Warn("Reranker failed, using neutral signal")
	} else {
		raw.Reranker = score
	}

	queryNames, candNames := query.Names(), cand.Names()

	if v, ok := safeSignal(func() float64 {
		return matching.MaxOverNames(queryNames, candNames, s.matcher.FuzzyRatio)
	}); ok {
		raw.Fuzzy = v
	} else {
		raw.MarkUnavailable(models.SignalFuzzy)
		metrics.RecordSignalFailure(string(models.SignalFuzzy))
		log.Warn("Fuzzy matcher failed, using neutral signal")
	}

	if v, ok := safeSignal(func() float64 {
		return matching.MaxOverNames(queryNames, candNames, s.matcher.EditSimilarity)
	}); ok {
		raw.Edit = v
	} else {
		raw.MarkUnavailable(models.SignalEdit)
		metrics.RecordSignalFailure(string(models.SignalEdit))
		log.Warn("Edit matcher failed, using neutral signal")
	}

	return raw
}

// safeSignal runs an in-process matcher, turning a panic into an unavailable signal
func safeSignal(fn func() float64) (v float64, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			v, ok = 0, false
		}
	}()
	return fn(), true
}

func validateEntity(entity models.EntityDescriptor) error {
	if err := validate.Struct(entity); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntity, err)
	}
	if strings.TrimSpace(entity.Name) == "" {
		return fmt.Errorf("%w: name must not be blank", ErrInvalidEntity)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event string, fn func(EventEmitter) error) {
	if s.events == nil {
		return
	}
	if err := fn(s.events); err != nil {
		s.log.WithContext(ctx).WithError(err).WithField("event", event).Warn("Failed to emit event")
	}
}
