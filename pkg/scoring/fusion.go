package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/Ramsey-B/iris/pkg/models"
)

// Weights are the fusion weights of the four signals. They are expected to sum to 1,
// which keeps the fused score in [0,1], but this is not enforced.
type Weights struct {
	Semantic float64 `json:"semantic"`
	Reranker float64 `json:"reranker"`
	Fuzzy    float64 `json:"fuzzy"`
	Edit     float64 `json:"edit"`
}

// DefaultWeights returns the default weights 0.4/0.3/0.2/0.1
func DefaultWeights() Weights {
	return Weights{Semantic: 0.4, Reranker: 0.3, Fuzzy: 0.2, Edit: 0.1}
}

// Sum returns the total weight
func (w Weights) Sum() float64 {
	return w.Semantic + w.Reranker + w.Fuzzy + w.Edit
}

// Validate rejects negative or non-finite weights and an all-zero set
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"semantic": w.Semantic,
		"reranker": w.Reranker,
		"fuzzy":    w.Fuzzy,
		"edit":     w.Edit,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s weight must be a non-negative number, got %v", name, v)
		}
	}
	if w.Sum() <= 0 {
		return fmt.Errorf("weights must not all be zero")
	}
	return nil
}

// TypeAdjustment holds the multipliers applied for known type relations
type TypeAdjustment struct {
	MatchBonus      float64 `json:"match_bonus"`
	MismatchPenalty float64 `json:"mismatch_penalty"`
}

// DefaultTypeAdjustment returns a 1.1 bonus and a 0.3 penalty
func DefaultTypeAdjustment() TypeAdjustment {
	return TypeAdjustment{MatchBonus: 1.1, MismatchPenalty: 0.3}
}

// Validate rejects negative or non-finite multipliers
func (a TypeAdjustment) Validate() error {
	if math.IsNaN(a.MatchBonus) || math.IsInf(a.MatchBonus, 0) || a.MatchBonus < 0 {
		return fmt.Errorf("type match bonus must be a non-negative number, got %v", a.MatchBonus)
	}
	if math.IsNaN(a.MismatchPenalty) || math.IsInf(a.MismatchPenalty, 0) || a.MismatchPenalty < 0 {
		return fmt.Errorf("type mismatch penalty must be a non-negative number, got %v", a.MismatchPenalty)
	}
	return nil
}

// Multiplier returns the multiplier for a relation. Unknown is neutral.
func (a TypeAdjustment) Multiplier(relation models.TypeRelation) float64 {
	switch relation {
	case models.TypeRelationMatch:
		return a.MatchBonus
	case models.TypeRelationMismatch:
		return a.MismatchPenalty
	default:
		return 1.0
	}
}

// ResolveTypeRelation compares two type tags. It returns Unknown when either is empty.
func ResolveTypeRelation(queryType, candidateType string) models.TypeRelation {
	q := strings.TrimSpace(queryType)
	c := strings.TrimSpace(candidateType)
	if q == "" || c == "" {
		return models.TypeRelationUnknown
	}
	if strings.EqualFold(q, c) {
		return models.TypeRelationMatch
	}
	return models.TypeRelationMismatch
}

// Fuse combines normalized signals into a composite score. The final score is the fused
// score times the type multiplier and is not clamped.
func Fuse(n models.NormalizedSignalSet, weights Weights, relation models.TypeRelation, adjustment TypeAdjustment) models.CompositeScore {
	fused := n.Semantic*weights.Semantic +
		n.Reranker*weights.Reranker +
		n.Fuzzy*weights.Fuzzy +
		n.Edit*weights.Edit

	multiplier := adjustment.Multiplier(relation)
	return models.CompositeScore{
		Signals:        n,
		FusedScore:     fused,
		TypeRelation:   relation,
		TypeMultiplier: multiplier,
		FinalScore:     fused * multiplier,
	}
}

// Scorer bundles the normalization and fusion settings
type Scorer struct {
	Normalizer Normalizer
	Weights    Weights
	Adjustment TypeAdjustment
}

// Score normalizes and fuses a raw signal set for a query/candidate type pair
func (s Scorer) Score(raw models.RawSignalSet, queryType, candidateType string) models.CompositeScore {
	score := Fuse(Normalize(raw, s.Normalizer), s.Weights, ResolveTypeRelation(queryType, candidateType), s.Adjustment)
	score.Raw = raw
	return score
}
