package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/roach88/ffspoints/internal/ancestry"
	"github.com/roach88/ffspoints/internal/engine"
	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/store"
	"github.com/roach88/ffspoints/internal/testutil"
	"github.com/roach88/ffspoints/internal/weights"
)

// CodeNotFound is recorded when a step targets a point that is not stored.
const CodeNotFound = "NOT_FOUND"

// Harness executes the steps of one scenario.
// Trials and costs go through the ingest engine; weight and deactivate
// steps call the store directly, in step order.
type Harness struct {
	store   *store.Store
	engine  *engine.Engine
	weights *weights.Engine
	clock   *testutil.DeterministicClock
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh database in a temporary directory that is
// removed afterwards. Point ids assigned by the store come from a sequence
// generator, so results are reproducible.
//
// An error is returned only when the run itself cannot proceed. Unexpected
// step outcomes and failed assertions are reported in the Result.
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "ffspoints-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = "w0"
	}
	st, err := store.Open(filepath.Join(dir, "scenario.db"),
		store.WithIDGenerator(point.NewSequenceGenerator(prefix)),
		store.WithRetryBackoff(0),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	commitEvery := scenario.CommitEvery
	if commitEvery == 0 {
		commitEvery = 1
	}

	h := &Harness{
		store:   st,
		engine:  engine.New(st, engine.WithCommitEvery(commitEvery)),
		weights: weights.New(st),
		clock:   testutil.NewDeterministicClock(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runErr := make(chan error, 1)
	go func() {
		runErr <- h.engine.Run(ctx)
	}()

	result := NewResult()
	h.executeSteps(ctx, scenario.Steps, result)

	h.engine.Stop()
	if err := <-runErr; err != nil {
		return nil, fmt.Errorf("ingest engine stopped: %w", err)
	}

	if err := h.snapshot(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to snapshot store: %w", err)
	}

	actx := &AssertionContext{
		Ctx:     ctx,
		Store:   st,
		Weights: h.weights,
		Tracer:  ancestry.NewTracer(st),
	}
	for _, msg := range EvaluateAssertions(scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) executeSteps(ctx context.Context, steps []Step, result *Result) {
	for i, step := range steps {
		ev := TraceEvent{Seq: h.clock.Next(), Action: step.Action}
		err := h.executeStep(ctx, step, &ev)
		if err != nil {
			ev.Code = errorCode(err)
		}
		result.AddTrace(ev)

		switch {
		case step.ExpectError == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Action, err))
		case step.ExpectError != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got success", i, step.Action, step.ExpectError))
		case step.ExpectError != "" && ev.Code != step.ExpectError:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected %s, got %s", i, step.Action, step.ExpectError, ev.Code))
		}

		h.logger.Debug("step executed",
			"step", i,
			"action", step.Action,
			"id", ev.ID,
			"code", ev.Code,
		)
	}
}

func (h *Harness) executeStep(ctx context.Context, step Step, ev *TraceEvent) error {
	switch step.Action {
	case ActionReport:
		p := step.Point.Point()
		ev.ID = p.ID
		ev.Interface = p.Interface
		stored, err := h.engine.Submit(ctx, p)
		if err != nil {
			return err
		}
		ev.ID = stored.ID
		return nil

	case ActionCost:
		ev.ID = step.ID
		reply := make(chan engine.Result, 1)
		if !h.engine.ReportCost(step.ID, step.Steps, step.Time, reply) {
			return engine.ErrStopped
		}
		r := <-reply
		if r.Err != nil {
			return r.Err
		}
		if !r.Found {
			return errNotFound
		}
		return nil

	case ActionComplete:
		ev.Interface = step.Interface
		mode := weights.ModeEnrich
		if step.Mode != "" {
			m, err := weights.ParseMode(step.Mode)
			if err != nil {
				return err
			}
			mode = m
		}
		res, err := h.weights.Complete(ctx, step.Interface, mode)
		if err != nil {
			return err
		}
		ev.Total = res.Total
		return nil

	case ActionDeactivate:
		ev.ID = step.ID
		ok, err := h.store.Deactivate(ctx, step.ID)
		if err != nil {
			return err
		}
		if !ok {
			return errNotFound
		}
		return nil

	case ActionCommit:
		return h.store.Commit(ctx)
	}
	return fmt.Errorf("unknown action %q", step.Action)
}

// snapshot records every stored point, deactivated and failed included.
func (h *Harness) snapshot(ctx context.Context, result *Result) error {
	maxIface, err := h.store.MaxInterface(ctx)
	if err != nil {
		return err
	}
	opts := store.ListOptions{IncludeDeactivated: true, IncludeFailed: true}

	var all []point.Point
	for iface := 0; iface <= maxIface; iface++ {
		pts, err := h.store.ListInterface(ctx, iface, opts)
		if err != nil {
			return err
		}
		all = append(all, pts...)
	}
	sortBySeq(all)
	for _, p := range all {
		result.Points = append(result.Points, newPointState(p))
	}
	return nil
}

func sortBySeq(pts []point.Point) {
	slices.SortFunc(pts, func(a, b point.Point) int {
		return int(a.Seq - b.Seq)
	})
}

var errNotFound = errors.New("point not found")

func errorCode(err error) string {
	if errors.Is(err, errNotFound) {
		return CodeNotFound
	}
	var pe *point.Error
	if errors.As(err, &pe) {
		return string(pe.Code)
	}
	return "ERROR"
}
