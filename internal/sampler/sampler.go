// Package sampler draws points in proportion to their weight.
//
// A Sampler owns an explicit random source and at most one cached snapshot,
// keyed by interface. It is single-owner: share it across goroutines only
// behind a mutex.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/roach88/ffspoints/internal/point"
)

// Mode selects whether a draw may use the cached snapshot.
type Mode int

const (
	// ModeFresh re-queries the source on every draw.
	ModeFresh Mode = iota
	// ModeCached draws from the snapshot of the last interface sampled,
	// rebuilding it only when the interface changes or after Invalidate.
	ModeCached
)

// String returns the mode name used in CLI flags.
func (m Mode) String() string {
	if m == ModeCached {
		return "cached"
	}
	return "fresh"
}

// Source lists the sampleable points of an interface in a stable order.
// *store.Store implements Source.
type Source interface {
	ListSampleable(ctx context.Context, iface int) ([]point.Candidate, error)
}

// NewRand returns the PCG random source used by samplers, seeded so that a
// run can be reproduced.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// WeightedChoice draws an index with probability weights[i] / sum(weights).
//
// r is drawn uniformly over the total weight and the first index whose prefix
// sum reaches r is returned, so zero-weight entries are never chosen. Empty
// input or zero total weight fails with EMPTY_DISTRIBUTION.
func WeightedChoice(rng *rand.Rand, weights []float64) (int, error) {
	prefix, err := prefixSums(weights)
	if err != nil {
		return 0, err
	}
	r := draw(rng, prefix[len(prefix)-1])
	for i, p := range prefix {
		if p >= r {
			return i, nil
		}
	}
	// Unreachable: r <= total == prefix[len-1].
	return len(prefix) - 1, nil
}

// prefixSums returns the running sums of weights, validating every entry.
func prefixSums(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, point.NewEmptyDistribution("weighted choice", 0, 0)
	}
	prefix := make([]float64, len(weights))
	var total float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) {
			return nil, fmt.Errorf("weighted choice: invalid weight %v at index %d", w, i)
		}
		total += w
		prefix[i] = total
	}
	if total == 0 {
		return nil, point.NewEmptyDistribution("weighted choice", 0, len(weights))
	}
	if math.IsInf(total, 0) {
		return nil, fmt.Errorf("weighted choice: total weight overflows")
	}
	return prefix, nil
}

// draw returns r uniform in (0, total].
func draw(rng *rand.Rand, total float64) float64 {
	return (1 - rng.Float64()) * total
}

// snapshot is the cached view of one interface.
type snapshot struct {
	iface  int
	cands  []point.Candidate
	prefix []float64 // nil when every weight is zero
}

// Sampler draws candidates from a Source.
type Sampler struct {
	src   Source
	rng   *rand.Rand
	cache *snapshot
}

// New creates a Sampler over src using rng for every draw.
func New(src Source, rng *rand.Rand) *Sampler {
	return &Sampler{src: src, rng: rng}
}

// Invalidate drops the cached snapshot. Call it whenever the points or
// weights of the cached interface may have changed, e.g. after a weight
// update.
func (s *Sampler) Invalidate() {
	s.cache = nil
}

// Sample draws one active successful point at iface in proportion to its
// weight.
func (s *Sampler) Sample(ctx context.Context, iface int, mode Mode) (point.Candidate, error) {
	snap, err := s.snapshot(ctx, iface, mode)
	if err != nil {
		return point.Candidate{}, err
	}
	if snap.prefix == nil {
		return point.Candidate{}, point.NewEmptyDistribution("sample", iface, len(snap.cands))
	}

	r := draw(s.rng, snap.prefix[len(snap.prefix)-1])
	var i int
	if mode == ModeCached {
		i = sort.SearchFloat64s(snap.prefix, r)
	} else {
		i = linearSearch(snap.prefix, r)
	}
	return snap.cands[i], nil
}

// SampleUniform draws one active successful point at iface, ignoring weights.
// Candidates are indexed in the stable store order.
func (s *Sampler) SampleUniform(ctx context.Context, iface int, mode Mode) (point.Candidate, error) {
	snap, err := s.snapshot(ctx, iface, mode)
	if err != nil {
		return point.Candidate{}, err
	}
	if len(snap.cands) == 0 {
		return point.Candidate{}, point.NewEmptyDistribution("sample uniform", iface, 0)
	}
	return snap.cands[s.rng.IntN(len(snap.cands))], nil
}

func (s *Sampler) snapshot(ctx context.Context, iface int, mode Mode) (*snapshot, error) {
	if mode == ModeCached && s.cache != nil && s.cache.iface == iface {
		return s.cache, nil
	}

	cands, err := s.src.ListSampleable(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("sample interface %d: %w", iface, err)
	}
	snap := &snapshot{iface: iface, cands: cands}
	if len(cands) > 0 {
		weights := make([]float64, len(cands))
		for i, c := range cands {
			weights[i] = c.Weight
		}
		prefix, err := prefixSums(weights)
		if err != nil && !point.IsEmptyDistribution(err) {
			return nil, fmt.Errorf("sample interface %d: %w", iface, err)
		}
		snap.prefix = prefix
	}

	// Empty interfaces are not cached so that polling callers see new points.
	if mode == ModeCached && len(cands) > 0 {
		s.cache = snap
		slog.Debug("sampler cache rebuilt", "interface", iface, "candidates", len(cands))
	}
	return snap, nil
}

func linearSearch(prefix []float64, r float64) int {
	for i, p := range prefix {
		if p >= r {
			return i
		}
	}
	return len(prefix) - 1
}
