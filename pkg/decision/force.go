package decision

import (
	"fmt"

	"github.com/Ramsey-B/iris/pkg/models"
)

// ForcePolicy resolves an ambiguous outcome when the caller forces a decision
type ForcePolicy string

const (
	// ForcePolicyMidpoint merges above the midpoint of the thresholds and creates otherwise
	ForcePolicyMidpoint ForcePolicy = "midpoint"
	// ForcePolicyMerge always merges into the top candidate
	ForcePolicyMerge ForcePolicy = "merge"
	// ForcePolicyCreate always creates
	ForcePolicyCreate ForcePolicy = "create"
)

// Validate rejects unknown policies
func (p ForcePolicy) Validate() error {
	switch p {
	case ForcePolicyMidpoint, ForcePolicyMerge, ForcePolicyCreate:
		return nil
	default:
		return fmt.Errorf("unknown force policy %q", p)
	}
}

// Resolve picks merge or create for an ambiguous score
func (p ForcePolicy) Resolve(score float64, t Thresholds) models.DecisionKind {
	switch p {
	case ForcePolicyMerge:
		return models.DecisionMerge
	case ForcePolicyCreate:
		return models.DecisionCreate
	default:
		if score > (t.High+t.Low)/2 {
			return models.DecisionMerge
		}
		return models.DecisionCreate
	}
}
