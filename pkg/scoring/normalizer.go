// Package scoring normalizes raw similarity signals and fuses them into a composite score.
package scoring

import (
	"fmt"
	"math"

	"github.com/Ramsey-B/iris/pkg/models"
)

const (
	// DefaultRerankerLow is the calibrated reranker score of a clearly mismatched pair
	DefaultRerankerLow = -6.5
	// DefaultRerankerHigh is the calibrated reranker score of an identical-text pair
	DefaultRerankerHigh = 7.7

	// NeutralSignal replaces a signal whose collaborator failed
	NeutralSignal = 0.5
)

// NormalizationStrategy names a reranker normalization strategy
type NormalizationStrategy string

const (
	NormalizationLinear   NormalizationStrategy = "linear"
	NormalizationLogistic NormalizationStrategy = "logistic"
)

// Normalizer maps an unbounded reranker score into [0,1].
// Implementations must be pure, total and monotonically non-decreasing.
type Normalizer interface {
	Normalize(raw float64) float64
	Name() NormalizationStrategy
}

// Linear rescales raw scores between calibrated bounds and clamps the result
type Linear struct {
	Low  float64
	High float64
}

// NewLinear creates a linear normalizer with the given bounds
func NewLinear(low, high float64) (Linear, error) {
	if math.IsNaN(low) || math.IsNaN(high) || high <= low {
		return Linear{}, fmt.Errorf("invalid linear bounds [%v, %v]: high must be greater than low", low, high)
	}
	return Linear{Low: low, High: high}, nil
}

// DefaultLinear returns the linear normalizer with the default calibrated bounds
func DefaultLinear() Linear {
	return Linear{Low: DefaultRerankerLow, High: DefaultRerankerHigh}
}

func (l Linear) Normalize(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	span := l.High - l.Low
	if span <= 0 {
		// Degenerate bounds behave like a step at Low
		if raw >= l.Low {
			return 1
		}
		return 0
	}
	return Clamp01((raw - l.Low) / span)
}

func (l Linear) Name() NormalizationStrategy {
	return NormalizationLinear
}

// Logistic treats raw scores as log-odds. It inflates moderate raw scores,
// so it only suits rerankers whose output is already a logit.
type Logistic struct{}

func (Logistic) Normalize(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return Clamp01(1 / (1 + math.Exp(-raw)))
}

func (Logistic) Name() NormalizationStrategy {
	return NormalizationLogistic
}

// NewNormalizer builds the normalizer for a configured strategy
func NewNormalizer(strategy NormalizationStrategy, low, high float64) (Normalizer, error) {
	switch strategy {
	case NormalizationLinear, "":
		return NewLinear(low, high)
	case NormalizationLogistic:
		return Logistic{}, nil
	default:
		return nil, fmt.Errorf("unknown reranker normalization strategy %q", strategy)
	}
}

// Normalize maps a raw signal set into [0,1]. Bounded signals are clamped and the
// reranker score goes through the strategy. Signals marked unavailable become NeutralSignal.
func Normalize(raw models.RawSignalSet, normalizer Normalizer) models.NormalizedSignalSet {
	if normalizer == nil {
		normalizer = DefaultLinear()
	}
	n := models.NormalizedSignalSet{
		Semantic: Clamp01(raw.Semantic),
		Reranker: normalizer.Normalize(raw.Reranker),
		Fuzzy:    Clamp01(raw.Fuzzy),
		Edit:     Clamp01(raw.Edit),
	}
	for _, s := range raw.Unavailable {
		switch s {
		case models.SignalSemantic:
			n.Semantic = NeutralSignal
		case models.SignalReranker:
			n.Reranker = NeutralSignal
		case models.SignalFuzzy:
			n.Fuzzy = NeutralSignal
		case models.SignalEdit:
			n.Edit = NeutralSignal
		}
	}
	return n
}

// Clamp01 clamps v into [0,1]; NaN becomes 0
func Clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
