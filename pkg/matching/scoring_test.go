package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorer_LevenshteinDistance(t *testing.T) {
	s := NewScorer()

	tests := []struct {
		a, b     string
		expected int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"北京大学", "北京大學", 1},
		{"café", "cafe", 1},
		{"Société Générale", "Societe Generale", 4},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.LevenshteinDistance(tt.a, tt.b))
		})
	}
}

func TestScorer_Levenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Levenshtein("Acme", "Acme"))
	assert.Equal(t, 0.0, s.Levenshtein("", ""))
	assert.InDelta(t, 1-3.0/7.0, s.Levenshtein("kitten", "sitting"), 1e-9)
	assert.InDelta(t, 0.75, s.Levenshtein("北京大学", "北京大學"), 1e-9)
	// lengths are runes, not bytes
	assert.InDelta(t, 0.75, s.Levenshtein("café", "cafe"), 1e-9)
	assert.Equal(t, s.Levenshtein("abc", "xyz"), s.EditSimilarity("abc", "xyz"))
}

func TestScorer_Ratio(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Ratio("hello", "hello"))
	assert.Equal(t, 0.0, s.Ratio("", ""))
	assert.Equal(t, 0.0, s.Ratio("abc", ""))
	// LCS("abcd", "abdc") = 3
	assert.InDelta(t, 6.0/8.0, s.Ratio("abcd", "abdc"), 1e-9)
}

func TestScorer_TokenSortRatio(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.TokenSortRatio("John Smith", "Smith John"))
	assert.Equal(t, 1.0, s.TokenSortRatio("  new   york ", "york new"))
	assert.Less(t, s.TokenSortRatio("John Smith", "Jane Smyth"), 1.0)
	assert.Equal(t, s.TokenSortRatio("a b", "b c"), s.FuzzyRatio("a b", "b c"))
}

func TestScorer_ScoresAreBounded(t *testing.T) {
	s := NewScorer()
	pairs := [][2]string{{"a", "b"}, {"", "x"}, {"longer string", "short"}, {"same", "same"}}

	for _, p := range pairs {
		for _, score := range []float64{s.FuzzyRatio(p[0], p[1]), s.EditSimilarity(p[0], p[1])} {
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 1.0)
		}
	}
}

func TestMaxOverNames(t *testing.T) {
	s := NewScorer()

	t.Run("alias matches candidate name", func(t *testing.T) {
		score := MaxOverNames([]string{"International Business Machines", "IBM"}, []string{"IBM"}, s.EditSimilarity)
		assert.Equal(t, 1.0, score)
	})

	t.Run("alias to alias", func(t *testing.T) {
		score := MaxOverNames([]string{"Big Blue", "IBM"}, []string{"I.B.M.", "IBM"}, s.FuzzyRatio)
		assert.Equal(t, 1.0, score)
	})

	t.Run("skips empty names", func(t *testing.T) {
		score := MaxOverNames([]string{"", ""}, []string{""}, func(_, _ string) float64 { return 1 })
		assert.Equal(t, 0.0, score)
	})
}

func TestCommonNames(t *testing.T) {
	assert.Equal(t, []string{"IBM", "Big Blue"}, CommonNames([]string{"IBM", "Big Blue", "IBM", "x"}, []string{"Big Blue", "IBM"}))
	assert.Empty(t, CommonNames([]string{"a"}, []string{"b"}))
}
