package disambiguation

import (
	"fmt"
	"time"

	"github.com/Ramsey-B/iris/pkg/decision"
	"github.com/Ramsey-B/iris/pkg/scoring"
)

// Settings are the tunable parameters of the decision engine
type Settings struct {
	Weights       scoring.Weights               `json:"weights"`
	Adjustment    scoring.TypeAdjustment        `json:"type_adjustment"`
	Thresholds    decision.Thresholds           `json:"thresholds"`
	ForcePolicy   decision.ForcePolicy          `json:"force_policy"`
	Normalization scoring.NormalizationStrategy `json:"normalization"`
	RerankerLow   float64                       `json:"reranker_low"`
	RerankerHigh  float64                       `json:"reranker_high"`
	DefaultTopK   int                           `json:"default_top_k"`
	MinSimilarity float64                       `json:"min_similarity"` // typed search cutoff
	SignalTimeout time.Duration                 `json:"signal_timeout"`
	Concurrency   int                           `json:"concurrency"`
}

// DefaultSettings returns the default engine settings
func DefaultSettings() Settings {
	thresholds := decision.DefaultThresholds()
	return Settings{
		Weights:       scoring.DefaultWeights(),
		Adjustment:    scoring.DefaultTypeAdjustment(),
		Thresholds:    thresholds,
		ForcePolicy:   decision.ForcePolicyMidpoint,
		Normalization: scoring.NormalizationLinear,
		RerankerLow:   scoring.DefaultRerankerLow,
		RerankerHigh:  scoring.DefaultRerankerHigh,
		DefaultTopK:   10,
		MinSimilarity: thresholds.Low,
		SignalTimeout: 5 * time.Second,
		Concurrency:   8,
	}
}

// Validate checks every setting. It builds the engine so nothing that passes here can
// fail later.
func (s Settings) Validate() error {
	_, err := newEngine(s)
	return err
}

// engine is the immutable compiled form of Settings
type engine struct {
	settings   Settings
	scorer     scoring.Scorer
	classifier *decision.Classifier
}

func newEngine(s Settings) (*engine, error) {
	if err := s.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.Adjustment.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	normalizer, err := scoring.NewNormalizer(s.Normalization, s.RerankerLow, s.RerankerHigh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	classifier, err := decision.NewClassifier(s.Thresholds, s.ForcePolicy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.DefaultTopK < 1 {
		return nil, fmt.Errorf("%w: default top k must be at least 1, got %d", ErrInvalidSettings, s.DefaultTopK)
	}
	if s.SignalTimeout <= 0 {
		return nil, fmt.Errorf("%w: signal timeout must be positive", ErrInvalidSettings)
	}
	if s.Concurrency < 1 {
		return nil, fmt.Errorf("%w: concurrency must be at least 1, got %d", ErrInvalidSettings, s.Concurrency)
	}
	if s.ForcePolicy == "" {
		s.ForcePolicy = classifier.ForcePolicy()
	}
	return &engine{
		settings: s,
		scorer: scoring.Scorer{
			Normalizer: normalizer,
			Weights:    s.Weights,
			Adjustment: s.Adjustment,
		},
		classifier: classifier,
	}, nil
}
