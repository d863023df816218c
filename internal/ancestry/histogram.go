package ancestry

import (
	"context"
	"fmt"
	"sort"
)

// OriginSource lists origin links in bulk. *store.Store implements OriginSource.
type OriginSource interface {
	OriginIDs(ctx context.Context, iface int) ([]string, error)
	OriginsOf(ctx context.Context, ids []string) ([]string, error)
}

// OriginCount is one bucket of a Histogram.
type OriginCount struct {
	OriginID string `json:"origin_id"`
	Children int    `json:"children"`
}

// Histogram counts the active successful points at iface per origin,
// ordered by descending count and then origin id.
func Histogram(ctx context.Context, src OriginSource, iface int) ([]OriginCount, error) {
	origins, err := src.OriginIDs(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("histogram: %w", err)
	}

	counts := make(map[string]int)
	for _, o := range origins {
		counts[o]++
	}
	out := make([]OriginCount, 0, len(counts))
	for o, n := range counts {
		out = append(out, OriginCount{OriginID: o, Children: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Children != out[j].Children {
			return out[i].Children > out[j].Children
		}
		return out[i].OriginID < out[j].OriginID
	})
	return out, nil
}

// Roots returns the distinct interface-0 ancestors of the active successful
// points at iface, sorted. It walks one interface per round, so its cost is
// bounded by iface rounds of bulk lookups rather than by the number of chains.
// Interface 0 points have no ancestors, so iface must be >= 1.
func Roots(ctx context.Context, src OriginSource, iface int) ([]string, error) {
	if iface <= 0 {
		return nil, fmt.Errorf("roots: interface must be >= 1, got %d", iface)
	}

	origins, err := src.OriginIDs(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("roots: %w", err)
	}
	ids := dedupe(origins)

	// ids are points at iface-1; step down to interface 0.
	for level := iface - 1; level > 0; level-- {
		ids, err = src.OriginsOf(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("roots: %w", err)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
