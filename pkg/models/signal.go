package models

// Signal identifies one of the four similarity measurements
type Signal string

const (
	SignalSemantic Signal = "semantic"
	SignalReranker Signal = "reranker"
	SignalFuzzy    Signal = "fuzzy"
	SignalEdit     Signal = "edit"
)

// AllSignals lists the signals in fusion order
var AllSignals = []Signal{SignalSemantic, SignalReranker, SignalFuzzy, SignalEdit}

// RawSignalSet holds the raw measurements for one (query, candidate) pair.
// Semantic, Fuzzy and Edit are bounded to [0,1] by their producers. Reranker is unbounded.
type RawSignalSet struct {
	Semantic float64 `json:"semantic"`
	Reranker float64 `json:"reranker"`
	Fuzzy    float64 `json:"fuzzy"`
	Edit     float64 `json:"edit"`

	// Unavailable lists the signals whose collaborator failed or timed out
	Unavailable []Signal `json:"unavailable,omitempty"`
}

// MarkUnavailable records that a signal could not be computed
func (r *RawSignalSet) MarkUnavailable(s Signal) {
	for _, existing := range r.Unavailable {
		if existing == s {
			return
		}
	}
	r.Unavailable = append(r.Unavailable, s)
}

// IsUnavailable reports whether the signal was marked unavailable
func (r RawSignalSet) IsUnavailable(s Signal) bool {
	for _, existing := range r.Unavailable {
		if existing == s {
			return true
		}
	}
	return false
}

// NormalizedSignalSet holds the four signals mapped into [0,1]
type NormalizedSignalSet struct {
	Semantic float64 `json:"semantic"`
	Reranker float64 `json:"reranker"`
	Fuzzy    float64 `json:"fuzzy"`
	Edit     float64 `json:"edit"`
}

// TypeRelation describes how the query and candidate type tags relate
type TypeRelation string

const (
	TypeRelationMatch    TypeRelation = "match"
	TypeRelationMismatch TypeRelation = "mismatch"
	TypeRelationUnknown  TypeRelation = "unknown"
)

// CompositeScore is the fused score of one candidate
type CompositeScore struct {
	Raw            RawSignalSet        `json:"raw"`
	Signals        NormalizedSignalSet `json:"signals"`
	FusedScore     float64             `json:"fused_score"`
	TypeRelation   TypeRelation        `json:"type_relation"`
	TypeMultiplier float64             `json:"type_multiplier"`
	FinalScore     float64             `json:"final_score"`
}
