package disambiguation

import (
	"fmt"
	"strings"

	"github.com/Ramsey-B/iris/pkg/matching"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/scoring"
)

// similarityDetails summarizes a candidate's signals. The output depends only on its inputs.
func similarityDetails(query models.EntityDescriptor, cand models.StoredEntity, score models.CompositeScore) string {
	parts := []string{
		fmt.Sprintf("semantic=%.3f", score.Signals.Semantic),
		fmt.Sprintf("reranker=%.3f", score.Signals.Reranker),
		fmt.Sprintf("fuzzy=%.3f", score.Signals.Fuzzy),
		fmt.Sprintf("edit=%.3f", score.Signals.Edit),
		fmt.Sprintf("final=%.3f", score.FinalScore),
	}

	if score.TypeRelation != models.TypeRelationUnknown && score.TypeRelation != "" {
		parts = append(parts, fmt.Sprintf("type %s x%.2f", score.TypeRelation, score.TypeMultiplier))
	}

	if strings.EqualFold(strings.TrimSpace(query.Name), strings.TrimSpace(cand.Name)) {
		parts = append(parts, "exact name match")
	}

	if common := matching.CommonNames(query.Aliases, cand.Aliases); len(common) > 0 {
		parts = append(parts, "common aliases: "+strings.Join(common, ", "))
	}

	if len(score.Raw.Unavailable) > 0 {
		parts = append(parts, degradedNote(score.Raw.Unavailable))
	}

	return strings.Join(parts, "; ")
}

func degradedNote(unavailable []models.Signal) string {
	names := make([]string, len(unavailable))
	for i, s := range unavailable {
		names[i] = string(s)
	}
	return fmt.Sprintf("unavailable signals (%s) scored as neutral %.1f", strings.Join(names, ", "), scoring.NeutralSignal)
}
