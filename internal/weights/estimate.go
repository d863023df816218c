package weights

import (
	"context"
	"fmt"
)

// InterfaceEstimate is the counting estimate for one interface.
type InterfaceEstimate struct {
	Interface int   `json:"interface"`
	Success   int64 `json:"success"`
	Failed    int64 `json:"failed"`
	// Probability is Success / (Success + Failed), or 0 with no points.
	Probability float64 `json:"probability"`
	// Cumulative is the product of Probability over interfaces 1..Interface.
	// It is 1 at interface 0.
	Cumulative  float64 `json:"cumulative"`
	TotalWeight float64 `json:"total_weight"`
}

// Estimate reports the per-interface crossing estimates of the active points,
// ordered by interface.
func (e *Engine) Estimate(ctx context.Context) ([]InterfaceEstimate, error) {
	counts, err := e.store.InterfaceCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("estimate: %w", err)
	}

	out := make([]InterfaceEstimate, 0, len(counts))
	cumulative := 1.0
	for _, c := range counts {
		est := InterfaceEstimate{
			Interface:   c.Interface,
			Success:     c.Success,
			Failed:      c.Failed,
			TotalWeight: c.TotalWeight,
		}
		if all := c.All(); all > 0 {
			est.Probability = float64(c.Success) / float64(all)
		}
		if c.Interface > 0 {
			cumulative *= est.Probability
		}
		est.Cumulative = cumulative
		out = append(out, est)
	}
	return out, nil
}
