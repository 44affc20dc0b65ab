package lifecycle

import (
	"context"

	"feedchain/pkg/types"
)

// SummarizeImpact aggregates the current claims. It is recomputed on every
// call.
func (e *Engine) SummarizeImpact(ctx context.Context) (*types.ImpactSummary, error) {
	claims, err := e.store.Claims(ctx)
	if err != nil {
		return nil, err
	}

	return summarize(claims), nil
}

func summarize(claims []*types.Claim) *types.ImpactSummary {
	summary := new(types.ImpactSummary)
	ngos := make(map[string]struct{})

	for _, claim := range claims {
		ngos[claim.NGOID] = struct{}{}

		if claim.Status != types.ClaimStatusDistributed {
			continue
		}

		summary.SuccessfulDistributions++
		if claim.Distribution != nil {
			summary.MealsServed += claim.Distribution.PeopleFed
		}
	}

	summary.ActiveNGOs = len(ngos)

	return summary
}
