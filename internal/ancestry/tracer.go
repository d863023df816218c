// Package ancestry walks origin links back to the escape sentinel.
//
// The stored ancestry is expected to be a tree, but nothing in the store
// forbids a broken or cyclic chain. Two guards make every walk terminate:
//   - a visited set catches cycles (A → B → A)
//   - a depth bound catches runaway chains (A → B → ... → Z)
//
// A missing parent ends the walk with the partial result; only store
// I/O errors are returned to the caller.
package ancestry

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ffspoints/internal/point"
)

// DefaultMaxDepth bounds every traversal. It is far above any plausible
// number of interfaces.
const DefaultMaxDepth = 4096

// Lookup resolves points by id. *store.Store implements Lookup.
type Lookup interface {
	GetByID(ctx context.Context, id string) (point.Point, bool, error)
}

// Trace is the result of one traversal.
type Trace struct {
	// Start is the id the walk started from.
	Start string `json:"start"`
	// Steps is the sum of CalcSteps over Path.
	Steps int64 `json:"steps"`
	// Path lists the visited ids, starting point first.
	Path []string `json:"path"`
	// Broken is set when a parent could not be found; Missing names it.
	Broken  bool   `json:"broken,omitempty"`
	Missing string `json:"missing,omitempty"`
	// Truncated is set when the walk hit the depth bound or a cycle.
	Truncated bool `json:"truncated,omitempty"`
}

// Complete reports whether the walk reached the escape sentinel.
func (t Trace) Complete() bool {
	return !t.Broken && !t.Truncated
}

// Tracer reconstructs ancestry chains.
//
// Thread-safety: a Tracer has no mutable state and is safe for concurrent
// use if its Lookup is.
type Tracer struct {
	points   Lookup
	maxDepth int
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithMaxDepth sets the traversal bound. Values below 1 are ignored.
func WithMaxDepth(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxDepth = n
		}
	}
}

// NewTracer creates a Tracer over points.
func NewTracer(points Lookup, opts ...Option) *Tracer {
	t := &Tracer{points: points, maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TraceCost returns the cumulative simulated steps from id back to the
// escape sentinel. A broken chain yields the partial sum.
func (t *Tracer) TraceCost(ctx context.Context, id string) (int64, error) {
	tr, err := t.Trace(ctx, id)
	if err != nil {
		return 0, err
	}
	return tr.Steps, nil
}

// Trace walks from id to the escape sentinel, summing CalcSteps.
func (t *Tracer) Trace(ctx context.Context, id string) (Trace, error) {
	start := point.NormalizeID(id)
	tr := Trace{Start: start}
	visited := make(map[string]struct{})

	cur := start
	for cur != point.Escape {
		if len(tr.Path) >= t.maxDepth {
			tr.Truncated = true
			slog.Warn("ancestry trace hit depth bound",
				"start", start,
				"max_depth", t.maxDepth,
			)
			break
		}
		if _, seen := visited[cur]; seen {
			tr.Truncated = true
			slog.Warn("ancestry cycle detected", "start", start, "point_id", cur)
			break
		}

		p, ok, err := t.points.GetByID(ctx, cur)
		if err != nil {
			return Trace{}, fmt.Errorf("trace %q: %w", start, err)
		}
		if !ok {
			tr.Broken = true
			tr.Missing = cur
			slog.Warn("ancestry broken",
				"error", point.NewBrokenAncestry(start, cur),
				"partial_steps", tr.Steps,
			)
			break
		}

		visited[cur] = struct{}{}
		tr.Path = append(tr.Path, cur)
		tr.Steps += p.CalcSteps
		cur = p.OriginID
	}
	return tr, nil
}
