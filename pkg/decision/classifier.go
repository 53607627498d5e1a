// Package decision classifies scored candidates into merge, create or ambiguous outcomes.
package decision

import (
	"fmt"
	"math"
	"sort"

	"github.com/Ramsey-B/iris/pkg/models"
)

// Thresholds bound the ambiguous band. High is inclusive, Low is exclusive.
type Thresholds struct {
	High float64 `json:"high"`
	Low  float64 `json:"low"`
}

// DefaultThresholds returns high 0.85 and low 0.65
func DefaultThresholds() Thresholds {
	return Thresholds{High: 0.85, Low: 0.65}
}

// Validate requires finite thresholds with Low <= High
func (t Thresholds) Validate() error {
	if math.IsNaN(t.High) || math.IsNaN(t.Low) || math.IsInf(t.High, 0) || math.IsInf(t.Low, 0) {
		return fmt.Errorf("thresholds must be finite numbers")
	}
	if t.Low < 0 {
		return fmt.Errorf("low threshold must not be negative, got %v", t.Low)
	}
	if t.Low > t.High {
		return fmt.Errorf("low threshold %v must not exceed high threshold %v", t.Low, t.High)
	}
	return nil
}

// Classifier turns a scored candidate set into a decision
type Classifier struct {
	thresholds Thresholds
	force      ForcePolicy
}

// NewClassifier creates a classifier. An empty force policy defaults to midpoint.
func NewClassifier(thresholds Thresholds, force ForcePolicy) (*Classifier, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if force == "" {
		force = ForcePolicyMidpoint
	}
	if err := force.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: thresholds, force: force}, nil
}

// Thresholds returns the configured thresholds
func (c *Classifier) Thresholds() Thresholds {
	return c.thresholds
}

// ForcePolicy returns the configured force policy
func (c *Classifier) ForcePolicy() ForcePolicy {
	return c.force
}

// Classify picks the best candidate and decides. With force set, an ambiguous outcome is
// resolved through the force policy.
func (c *Classifier) Classify(candidates []models.ScoredCandidate, force bool) models.Decision {
	if len(candidates) == 0 {
		return models.Decision{
			Kind:      models.DecisionCreate,
			Reasoning: "no similar entities found, recommend create",
		}
	}

	winner := Best(candidates)
	score := winner.Score
	final := score.FinalScore

	switch {
	case final >= c.thresholds.High:
		return models.Decision{
			Kind:      models.DecisionMerge,
			MatchID:   winner.ID,
			Score:     &score,
			Reasoning: fmt.Sprintf("score %.3f is at or above high threshold %.3f, recommend merge", final, c.thresholds.High),
		}
	case final < c.thresholds.Low:
		return models.Decision{
			Kind:      models.DecisionCreate,
			Score:     &score,
			Reasoning: fmt.Sprintf("score %.3f is below low threshold %.3f, recommend create", final, c.thresholds.Low),
		}
	}

	if force {
		kind := c.force.Resolve(final, c.thresholds)
		d := models.Decision{
			Kind:      kind,
			Score:     &score,
			Forced:    true,
			Reasoning: fmt.Sprintf("forced: score %.3f is in the ambiguous range [%.3f, %.3f), %s policy chose %s", final, c.thresholds.Low, c.thresholds.High, c.force, kind),
		}
		if kind == models.DecisionMerge {
			d.MatchID = winner.ID
		}
		return d
	}

	return models.Decision{
		Kind:      models.DecisionAmbiguous,
		MatchID:   winner.ID,
		Score:     &score,
		Reasoning: fmt.Sprintf("score %.3f is in the ambiguous range [%.3f, %.3f), needs human review", final, c.thresholds.Low, c.thresholds.High),
	}
}

// Best returns the candidate with the highest final score. Ties go to the earliest
// CreatedAt, then to the lexicographically smallest ID.
func Best(candidates []models.ScoredCandidate) models.ScoredCandidate {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if Less(c, best) {
			best = c
		}
	}
	return best
}

// Less reports whether a ranks before b
func Less(a, b models.ScoredCandidate) bool {
	if a.Score.FinalScore != b.Score.FinalScore {
		return a.Score.FinalScore > b.Score.FinalScore
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// Rank sorts candidates in place using the tie-break order
func Rank(candidates []models.ScoredCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return Less(candidates[i], candidates[j])
	})
}
