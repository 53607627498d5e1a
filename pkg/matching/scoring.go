// Package matching provides string similarity primitives for entity names and aliases
package matching

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Scorer provides string comparison algorithms. All scores are in [0,1].
type Scorer struct{}

// NewScorer creates a new Scorer
func NewScorer() *Scorer {
	return &Scorer{}
}

// FuzzyRatio compares two strings after sorting their whitespace-separated tokens,
// so word order does not matter
func (s *Scorer) FuzzyRatio(a, b string) float64 {
	return s.TokenSortRatio(a, b)
}

// EditSimilarity returns the Levenshtein similarity of two strings
func (s *Scorer) EditSimilarity(a, b string) float64 {
	return s.Levenshtein(a, b)
}

// TokenSortRatio sorts the tokens of both strings and returns their Ratio
func (s *Scorer) TokenSortRatio(a, b string) float64 {
	return s.Ratio(sortTokens(a), sortTokens(b))
}

// Ratio returns the normalized indel similarity 2*LCS/(len(a)+len(b)).
// Two empty strings have no similarity.
func (s *Scorer) Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 0.0
	}
	return float64(2*longestCommonSubsequence(ra, rb)) / float64(total)
}

// Levenshtein returns 1 - distance/maxLen over runes. Two empty strings have no similarity.
func (s *Scorer) Levenshtein(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
}

// LevenshteinDistance calculates the edit distance between two strings, counted in runes
func (s *Scorer) LevenshteinDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// longestCommonSubsequence backs the indel Ratio. No library in use computes it.
func longestCommonSubsequence(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	row := make([]int, len(b)+1)
	prevRow := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				row[j] = prevRow[j-1] + 1
			} else {
				row[j] = max(row[j-1], prevRow[j])
			}
		}
		row, prevRow = prevRow, row
	}

	return prevRow[len(b)]
}

func sortTokens(str string) string {
	tokens := strings.Fields(str)
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}
