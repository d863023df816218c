// Package ghost chooses starting points for speculative ("ghost")
// continuation runs and maintains the caches that make the choice cheap.
//
// Ghost runs are recorded in a separate ghost store whose points name real
// points as their origins. The Scheduler favors the real point with the
// fewest ghost runs that no worker is currently using.
//
// Scheduler and ExclusionCache are single-owner values; Registry is safe for
// concurrent use.
package ghost

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/roach88/ffspoints/internal/point"
)

// Candidates lists and resolves the real points a ghost may start from.
// *store.Store implements Candidates. SuccessCount is expected to be cheap
// (cached), so it gates the full listing.
type Candidates interface {
	SuccessCount(ctx context.Context, iface int) (int64, error)
	SuccessIDs(ctx context.Context, iface int) ([]string, error)
	GetByID(ctx context.Context, id string) (point.Point, bool, error)
}

// UsageCounter reports how many ghost runs were launched from a point.
// The ghost *store.Store implements UsageCounter.
type UsageCounter interface {
	RunsOnPoint(ctx context.Context, id string) (int64, error)
}

// Scheduler selects ghost starting points.
//
// Per interface it keeps an exclusion set of points scanned and rejected in
// earlier calls and a usage threshold that starts at 0. Both reset when the
// requested interface changes.
type Scheduler struct {
	real     Candidates
	usage    UsageCounter
	inFlight InFlight
	rng      *rand.Rand

	iface     int
	excluded  map[string]struct{}
	threshold int64
}

// NewScheduler creates a Scheduler. rng drives the uniform fallback.
func NewScheduler(candidates Candidates, usage UsageCounter, inFlight InFlight, rng *rand.Rand) *Scheduler {
	return &Scheduler{
		real:     candidates,
		usage:    usage,
		inFlight: inFlight,
		rng:      rng,
		iface:    -1,
		excluded: make(map[string]struct{}),
	}
}

// Threshold returns the current usage threshold for early acceptance.
func (s *Scheduler) Threshold() int64 {
	return s.threshold
}

// SelectGhost returns the point at iface to start the next ghost run from.
//
// Candidates are scanned from the most recent to the oldest, skipping points
// in flight and points excluded earlier this interface. The scan stops at the
// first point whose usage is at most the threshold; every other scanned point
// is excluded. If every candidate was skipped, the exclusion set is cleared,
// the threshold is raised by one and the scan runs once more ignoring
// exclusions. The result is the scanned point with the lowest usage (first in
// scan order on ties), or a uniform pick over all candidates if nothing could
// be scanned. No candidates at all fails with EMPTY_DISTRIBUTION.
func (s *Scheduler) SelectGhost(ctx context.Context, iface int) (point.Point, error) {
	if iface != s.iface {
		s.iface = iface
		s.excluded = make(map[string]struct{})
		s.threshold = 0
	}

	n, err := s.real.SuccessCount(ctx, iface)
	if err != nil {
		return point.Point{}, fmt.Errorf("select ghost: %w", err)
	}
	if n == 0 {
		return point.Point{}, point.NewEmptyDistribution("select ghost", iface, 0)
	}

	all, err := s.real.SuccessIDs(ctx, iface)
	if err != nil {
		return point.Point{}, fmt.Errorf("select ghost: %w", err)
	}
	if len(all) == 0 {
		return point.Point{}, point.NewEmptyDistribution("select ghost", iface, 0)
	}

	scanned, err := s.scan(ctx, all, false)
	if err != nil {
		return point.Point{}, fmt.Errorf("select ghost: %w", err)
	}

	var id string
	if len(scanned) == 0 {
		id = all[s.rng.IntN(len(all))]
		slog.Debug("ghost fallback to uniform pick", "interface", iface, "point_id", id)
	} else {
		best := scanned[0]
		for _, u := range scanned[1:] {
			if u.runs < best.runs {
				best = u
			}
		}
		id = best.id
	}

	p, ok, err := s.real.GetByID(ctx, id)
	if err != nil {
		return point.Point{}, fmt.Errorf("select ghost: %w", err)
	}
	if !ok {
		return point.Point{}, fmt.Errorf("select ghost: point %q vanished", id)
	}
	return p, nil
}

type observed struct {
	id   string
	runs int64
}

func (s *Scheduler) scan(ctx context.Context, all []string, retry bool) ([]observed, error) {
	var scanned []observed
	for i := len(all) - 1; i >= 0; i-- {
		id := all[i]
		if s.inFlight.Contains(id) {
			continue
		}
		if _, ok := s.excluded[id]; ok && !retry {
			continue
		}

		runs, err := s.usage.RunsOnPoint(ctx, id)
		if err != nil {
			return nil, err
		}
		scanned = append(scanned, observed{id: id, runs: runs})
		if runs <= s.threshold {
			break
		}
		s.excluded[id] = struct{}{}
	}

	if len(scanned) == 0 && !retry {
		s.excluded = make(map[string]struct{})
		s.threshold++
		slog.Debug("ghost candidates exhausted, raising threshold",
			"interface", s.iface,
			"threshold", s.threshold,
		)
		return s.scan(ctx, all, true)
	}
	return scanned, nil
}
