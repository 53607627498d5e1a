package decision

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/iris/pkg/models"
)

func candidate(id string, score float64, createdAt time.Time) models.ScoredCandidate {
	return models.ScoredCandidate{
		ID:        id,
		CreatedAt: createdAt,
		Score:     models.CompositeScore{FusedScore: score, TypeMultiplier: 1, FinalScore: score},
	}
}

func newTestClassifier(t *testing.T, policy ForcePolicy) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultThresholds(), policy)
	require.NoError(t, err)
	return c
}

func TestClassify_EmptyCandidatesCreates(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)

	d := c.Classify(nil, false)
	assert.Equal(t, models.DecisionCreate, d.Kind)
	assert.Empty(t, d.MatchID)
	assert.Nil(t, d.Score)
	assert.NotEmpty(t, d.Reasoning)

	forced := c.Classify([]models.ScoredCandidate{}, true)
	assert.Equal(t, models.DecisionCreate, forced.Kind)
}

func TestClassify_Boundaries(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)
	now := time.Now()

	tests := []struct {
		name     string
		score    float64
		expected models.DecisionKind
		matchID  string
	}{
		{"exactly high threshold merges", 0.85, models.DecisionMerge, "a"},
		{"above high threshold merges", 0.99, models.DecisionMerge, "a"},
		{"above one merges", 1.1, models.DecisionMerge, "a"},
		{"exactly low threshold is ambiguous", 0.65, models.DecisionAmbiguous, "a"},
		{"between thresholds is ambiguous", 0.75, models.DecisionAmbiguous, "a"},
		{"just below low threshold creates", 0.6499, models.DecisionCreate, ""},
		{"zero creates", 0, models.DecisionCreate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify([]models.ScoredCandidate{candidate("a", tt.score, now)}, false)
			assert.Equal(t, tt.expected, d.Kind)
			assert.Equal(t, tt.matchID, d.MatchID)
			require.NotNil(t, d.Score)
			assert.Equal(t, tt.score, d.Score.FinalScore)
			assert.False(t, d.Forced)
		})
	}
}

func TestClassify_PerfectScoreScenario(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)

	d := c.Classify([]models.ScoredCandidate{candidate("e-1", 1.0, time.Now())}, false)
	assert.Equal(t, models.DecisionMerge, d.Kind)
	assert.Equal(t, "e-1", d.MatchID)
}

func TestClassify_LowScoreCreatesEvenWithLoweredThreshold(t *testing.T) {
	c, err := NewClassifier(Thresholds{High: 0.85, Low: 0.3}, ForcePolicyMidpoint)
	require.NoError(t, err)

	d := c.Classify([]models.ScoredCandidate{candidate("e-1", 0.137, time.Now())}, false)
	assert.Equal(t, models.DecisionCreate, d.Kind)
}

func TestClassify_PicksHighestScore(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)
	now := time.Now()

	d := c.Classify([]models.ScoredCandidate{
		candidate("low", 0.2, now),
		candidate("best", 0.9, now),
		candidate("mid", 0.7, now),
	}, false)

	assert.Equal(t, models.DecisionMerge, d.Kind)
	assert.Equal(t, "best", d.MatchID)
}

func TestClassify_TieBreakIsDeterministic(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("earliest created wins", func(t *testing.T) {
		candidates := []models.ScoredCandidate{
			candidate("a", 0.9, base.Add(time.Hour)),
			candidate("z", 0.9, base),
		}
		assert.Equal(t, "z", c.Classify(candidates, false).MatchID)
	})

	t.Run("smallest id wins on equal created", func(t *testing.T) {
		candidates := []models.ScoredCandidate{
			candidate("b", 0.9, base),
			candidate("a", 0.9, base),
			candidate("c", 0.9, base),
		}
		assert.Equal(t, "a", c.Classify(candidates, false).MatchID)
	})

	t.Run("order of input does not matter", func(t *testing.T) {
		first := []models.ScoredCandidate{
			candidate("b", 0.7, base),
			candidate("a", 0.7, base),
			candidate("c", 0.7, base.Add(-time.Minute)),
		}
		second := []models.ScoredCandidate{first[2], first[0], first[1]}

		d1 := c.Classify(first, false)
		d2 := c.Classify(second, false)
		assert.Equal(t, d1, d2)
		assert.Equal(t, "c", d1.MatchID)
	})
}

func TestClassify_ForcePolicies(t *testing.T) {
	now := time.Now()
	// midpoint of the default thresholds is 0.75
	tests := []struct {
		name     string
		policy   ForcePolicy
		score    float64
		expected models.DecisionKind
		matchID  string
	}{
		{"midpoint above merges", ForcePolicyMidpoint, 0.8, models.DecisionMerge, "a"},
		{"midpoint below creates", ForcePolicyMidpoint, 0.7, models.DecisionCreate, ""},
		{"merge policy merges", ForcePolicyMerge, 0.66, models.DecisionMerge, "a"},
		{"create policy creates", ForcePolicyCreate, 0.84, models.DecisionCreate, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(t, tt.policy)
			d := c.Classify([]models.ScoredCandidate{candidate("a", tt.score, now)}, true)
			assert.Equal(t, tt.expected, d.Kind)
			assert.Equal(t, tt.matchID, d.MatchID)
			assert.True(t, d.Forced)
			assert.Contains(t, d.Reasoning, "forced")
		})
	}
}

func TestClassify_ForceDoesNotAffectClearOutcomes(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMerge)
	now := time.Now()

	high := c.Classify([]models.ScoredCandidate{candidate("a", 0.9, now)}, true)
	assert.Equal(t, models.DecisionMerge, high.Kind)
	assert.False(t, high.Forced)

	low := c.Classify([]models.ScoredCandidate{candidate("a", 0.1, now)}, true)
	assert.Equal(t, models.DecisionCreate, low.Kind)
	assert.False(t, low.Forced)
}

func TestClassify_ReasoningIsDeterministic(t *testing.T) {
	c := newTestClassifier(t, ForcePolicyMidpoint)
	now := time.Now()

	d1 := c.Classify([]models.ScoredCandidate{candidate("a", 0.7, now)}, false)
	d2 := c.Classify([]models.ScoredCandidate{candidate("a", 0.7, now)}, false)
	assert.Equal(t, d1.Reasoning, d2.Reasoning)
	assert.Contains(t, d1.Reasoning, "0.700")
}

func TestNewClassifier_Validation(t *testing.T) {
	_, err := NewClassifier(Thresholds{High: 0.5, Low: 0.6}, ForcePolicyMidpoint)
	require.Error(t, err)

	_, err = NewClassifier(DefaultThresholds(), "coinflip")
	require.Error(t, err)

	c, err := NewClassifier(DefaultThresholds(), "")
	require.NoError(t, err)
	assert.Equal(t, ForcePolicyMidpoint, c.ForcePolicy())
}

func TestRank(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candidates := []models.ScoredCandidate{
		candidate("c", 0.5, base),
		candidate("b", 0.9, base.Add(time.Second)),
		candidate("a", 0.9, base.Add(time.Second)),
		candidate("d", 0.9, base),
	}

	Rank(candidates)

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}
