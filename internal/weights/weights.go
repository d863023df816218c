// Package weights propagates and renormalizes importance weights between
// interfaces.
//
// Once interface L is complete, each parent at L-1 splits its weight evenly
// among the children it launched (redistribution), then the weights at L are
// rescaled by the enrichment factor
//
//	E = W(L-1, success) / W(L-1, used)
//
// which corrects for parents that were never continued. Every exported
// operation runs in a single store.Update transaction, so readers never see a
// half-applied phase.
package weights

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/store"
)

// Mode selects the enrichment variant applied by Complete.
type Mode int

const (
	// ModeEnrich multiplies the weights at L by E.
	ModeEnrich Mode = iota
	// ModeRenorm multiplies the weights at L by E / W(L-1, success).
	ModeRenorm
)

// String returns the mode name used in config files and CLI flags.
func (m Mode) String() string {
	switch m {
	case ModeEnrich:
		return "enrich"
	case ModeRenorm:
		return "renorm"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "enrich" or "renorm".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "enrich":
		return ModeEnrich, nil
	case "renorm":
		return ModeRenorm, nil
	default:
		return 0, fmt.Errorf("unknown weight mode %q (want enrich or renorm)", s)
	}
}

// Factor describes one enrichment step.
type Factor struct {
	// E is W(L-1, success) / W(L-1, used).
	E float64 `json:"e"`
	// Used is W(L-1, usecount >= 1).
	Used float64 `json:"used"`
	// Total is W(L-1, success).
	Total float64 `json:"total"`
	// Applied is the multiplier written to the weights at L.
	Applied float64 `json:"applied"`
}

// Result reports one completed interface.
type Result struct {
	Interface     int     `json:"interface"`
	Mode          string  `json:"mode"`
	Redistributed float64 `json:"redistributed"`
	Factor        Factor  `json:"factor"`
	// Total is the active weight at Interface after the update.
	Total float64 `json:"total"`
}

// Engine applies weight updates to a store.
type Engine struct {
	store *store.Store
}

// New creates an Engine over s.
func New(s *store.Store) *Engine {
	return &Engine{store: s}
}

// PropagateWeights runs the redistribution phase for interface L on its own.
// Returns the sum of the weights assigned to child rows. L < 1 is a no-op.
func (e *Engine) PropagateWeights(ctx context.Context, L int) (float64, error) {
	var sum float64
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		sum, err = propagate(ctx, tx, L)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("propagate weights: %w", err)
	}
	return sum, nil
}

// Enrich multiplies every active weight at L by E.
func (e *Engine) Enrich(ctx context.Context, L int) (Factor, error) {
	return e.scale(ctx, L, ModeEnrich)
}

// Renorm multiplies every active weight at L by E / W(L-1, success).
func (e *Engine) Renorm(ctx context.Context, L int) (Factor, error) {
	return e.scale(ctx, L, ModeRenorm)
}

func (e *Engine) scale(ctx context.Context, L int, mode Mode) (Factor, error) {
	if L < 1 {
		return Factor{}, fmt.Errorf("%s: interface must be >= 1, got %d", mode, L)
	}
	var f Factor
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		f, err = applyFactor(ctx, tx, L, mode)
		return err
	})
	if err != nil {
		return Factor{}, fmt.Errorf("%s: %w", mode, err)
	}
	return f, nil
}

// ResetRoot sets every active weight at interface 0 to 1/n, where n is the
// number of active points there. It is the bootstrap before any propagation.
func (e *Engine) ResetRoot(ctx context.Context) (float64, error) {
	var w float64
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		var err error
		w, err = resetRoot(ctx, tx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("reset root: %w", err)
	}
	return w, nil
}

// Complete finalizes the weights of interface L in one transaction.
// L = 0 resets the root weights; L >= 1 redistributes and then applies mode.
// Either everything is written or nothing is.
func (e *Engine) Complete(ctx context.Context, L int, mode Mode) (Result, error) {
	if L < 0 {
		return Result{}, fmt.Errorf("complete: interface must be >= 0, got %d", L)
	}

	res := Result{Interface: L, Mode: mode.String()}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		res = Result{Interface: L, Mode: mode.String()}
		if L == 0 {
			w, err := resetRoot(ctx, tx)
			if err != nil {
				return err
			}
			res.Factor = Factor{E: 1, Applied: w}
		} else {
			sum, err := propagate(ctx, tx, L)
			if err != nil {
				return err
			}
			res.Redistributed = sum

			f, err := applyFactor(ctx, tx, L, mode)
			if err != nil {
				return err
			}
			res.Factor = f
		}

		total, err := tx.SumWeight(ctx, point.ForInterface(L))
		if err != nil {
			return err
		}
		res.Total = total
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("complete interface %d: %w", L, err)
	}

	slog.Info("interface weights completed",
		"interface", L,
		"mode", res.Mode,
		"redistributed", res.Redistributed,
		"e", res.Factor.E,
		"total", res.Total,
	)
	return res, nil
}

func propagate(ctx context.Context, tx *store.Tx, L int) (float64, error) {
	if L < 1 {
		return 0, nil
	}
	parents, err := tx.UsedParents(ctx, L-1)
	if err != nil {
		return 0, err
	}

	var sum float64
	for _, p := range parents {
		childWeight := p.Weight / float64(p.UseCount)
		n, err := tx.SetChildWeights(ctx, L, p.ID, childWeight)
		if err != nil {
			return 0, err
		}
		sum += childWeight * float64(n)
	}

	slog.Debug("weights redistributed", "interface", L, "parents", len(parents), "sum", sum)
	return sum, nil
}

func enrichmentFactor(ctx context.Context, tx *store.Tx, L int, op string) (Factor, error) {
	prev := point.ForInterface(L - 1)
	used, err := tx.SumWeight(ctx, prev.Used())
	if err != nil {
		return Factor{}, err
	}
	total, err := tx.SumWeight(ctx, prev.Successful())
	if err != nil {
		return Factor{}, err
	}
	if !usable(used) || !usable(total) {
		return Factor{}, point.NewDegenerateWeight(op, L, used, total)
	}
	return Factor{E: total / used, Used: used, Total: total}, nil
}

func applyFactor(ctx context.Context, tx *store.Tx, L int, mode Mode) (Factor, error) {
	f, err := enrichmentFactor(ctx, tx, L, mode.String())
	if err != nil {
		return Factor{}, err
	}

	switch mode {
	case ModeEnrich:
		f.Applied = f.E
	case ModeRenorm:
		f.Applied = f.E / f.Total
	default:
		return Factor{}, fmt.Errorf("unknown weight mode %d", int(mode))
	}
	if !usable(f.Applied) {
		return Factor{}, point.NewDegenerateWeight(mode.String(), L, f.Used, f.Total)
	}

	if _, err := tx.ScaleWeights(ctx, L, f.Applied); err != nil {
		return Factor{}, err
	}
	slog.Debug("enrichment applied",
		"interface", L,
		"mode", mode.String(),
		"used", f.Used,
		"total", f.Total,
		"e", f.E,
	)
	return f, nil
}

func resetRoot(ctx context.Context, tx *store.Tx) (float64, error) {
	n, err := tx.Count(ctx, point.ForInterface(0))
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, point.NewDegenerateWeight("reset root", 0, 0, 0)
	}
	w := 1 / float64(n)
	if _, err := tx.SetWeights(ctx, 0, w); err != nil {
		return 0, err
	}
	return w, nil
}

// usable reports whether v can be used as a denominator or multiplier.
func usable(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
