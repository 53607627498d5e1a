package models

import "time"

// DecisionKind is the outcome of a disambiguation request
type DecisionKind string

const (
	DecisionMerge     DecisionKind = "merge"     // Duplicate of an existing entity
	DecisionCreate    DecisionKind = "create"    // Genuinely new entity
	DecisionAmbiguous DecisionKind = "ambiguous" // Needs human review
)

// Decision is the result of classifying a candidate set.
// MatchID is the matched entity for Merge and the top candidate for Ambiguous.
type Decision struct {
	Kind      DecisionKind    `json:"decision"`
	MatchID   string          `json:"match_id,omitempty"`
	Score     *CompositeScore `json:"score,omitempty"`
	Reasoning string          `json:"reasoning"`
	Forced    bool            `json:"forced,omitempty"`
}

// ScoredCandidate is a shortlisted entity with its composite score
type ScoredCandidate struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Score     CompositeScore `json:"score"`
}

// CandidateMatch is a ranked candidate returned by the match candidates operation
type CandidateMatch struct {
	Entity            StoredEntity   `json:"entity"`
	Score             CompositeScore `json:"score"`
	Rank              int            `json:"rank"`
	SimilarityDetails string         `json:"similarity_details"`
}

// DecisionRecord is the append-only audit entry written once per request
type DecisionRecord struct {
	ID         string            `json:"id"`
	Input      EntityDescriptor  `json:"input"`
	Decision   Decision          `json:"decision"`
	Candidates []ScoredCandidate `json:"candidates"`
	CreatedAt  time.Time         `json:"created_at"`
}

// DecisionStats summarizes recent decisions
type DecisionStats struct {
	TotalCount     int     `json:"total_count"`
	MergeCount     int     `json:"merge_count"`
	CreateCount    int     `json:"create_count"`
	AmbiguousCount int     `json:"ambiguous_count"`
	MergeRate      float64 `json:"merge_rate"`
	CreateRate     float64 `json:"create_rate"`
	AmbiguousRate  float64 `json:"ambiguous_rate"`
}

// NewDecisionStats computes the rates from the counts
func NewDecisionStats(merge, create, ambiguous int) DecisionStats {
	stats := DecisionStats{
		TotalCount:     merge + create + ambiguous,
		MergeCount:     merge,
		CreateCount:    create,
		AmbiguousCount: ambiguous,
	}
	if stats.TotalCount > 0 {
		total := float64(stats.TotalCount)
		stats.MergeRate = float64(merge) / total
		stats.CreateRate = float64(create) / total
		stats.AmbiguousRate = float64(ambiguous) / total
	}
	return stats
}
