package harness

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/roach88/ffspoints/internal/ancestry"
	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/store"
	"github.com/roach88/ffspoints/internal/weights"
)

// AssertionContext gives assertions read access to the final state.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Weights *weights.Engine
	Tracer  *ancestry.Tracer
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Subject  string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s %s\n", e.Type, e.Subject)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions passed.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertCount:
		return assertCount(actx, a)
	case AssertWeight:
		return assertWeight(actx, a)
	case AssertUseCount:
		return assertUseCount(actx, a)
	case AssertTraceCost:
		return assertTraceCost(actx, a)
	case AssertEstimate:
		return assertEstimate(actx, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

// assertCount compares the number of active points at an interface,
// failed points included.
func assertCount(actx *AssertionContext, a Assertion) error {
	n, err := actx.Store.QueryAggregate(actx.Ctx, point.CountOf(), point.ForInterface(a.Interface))
	if err != nil {
		return err
	}
	if n != a.Expect {
		return &AssertionError{
			Type:     a.Type,
			Subject:  fmt.Sprintf("interface %d", a.Interface),
			Expected: formatValue(a.Expect),
			Actual:   formatValue(n),
		}
	}
	return nil
}

func assertWeight(actx *AssertionContext, a Assertion) error {
	p, err := lookup(actx, a.ID)
	if err != nil {
		return err
	}
	return compareFloat(a, a.ID, p.Weight)
}

func assertUseCount(actx *AssertionContext, a Assertion) error {
	p, err := lookup(actx, a.ID)
	if err != nil {
		return err
	}
	if float64(p.UseCount) != a.Expect {
		return &AssertionError{
			Type:     a.Type,
			Subject:  a.ID,
			Expected: formatValue(a.Expect),
			Actual:   formatValue(float64(p.UseCount)),
		}
	}
	return nil
}

func assertTraceCost(actx *AssertionContext, a Assertion) error {
	tr, err := actx.Tracer.Trace(actx.Ctx, a.ID)
	if err != nil {
		return err
	}
	if !tr.Complete() {
		return &AssertionError{
			Type:     a.Type,
			Subject:  a.ID,
			Expected: "complete trace to escape",
			Actual:   fmt.Sprintf("path %v broken=%t truncated=%t", tr.Path, tr.Broken, tr.Truncated),
		}
	}
	if float64(tr.Steps) != a.Expect {
		return &AssertionError{
			Type:     a.Type,
			Subject:  a.ID,
			Expected: formatValue(a.Expect),
			Actual:   formatValue(float64(tr.Steps)),
		}
	}
	return nil
}

func assertEstimate(actx *AssertionContext, a Assertion) error {
	ests, err := actx.Weights.Estimate(actx.Ctx)
	if err != nil {
		return err
	}
	subject := fmt.Sprintf("interface %d %s", a.Interface, a.Field)
	for _, est := range ests {
		if est.Interface != a.Interface {
			continue
		}
		v := est.Probability
		if a.Field == "cumulative" {
			v = est.Cumulative
		}
		return compareFloat(a, subject, v)
	}
	return &AssertionError{
		Type:     a.Type,
		Subject:  subject,
		Expected: formatValue(a.Expect),
		Actual:   "no active points at interface",
	}
}

func lookup(actx *AssertionContext, id string) (point.Point, error) {
	p, ok, err := actx.Store.GetByID(actx.Ctx, id)
	if err != nil {
		return point.Point{}, err
	}
	if !ok {
		return point.Point{}, fmt.Errorf("point %q not found", id)
	}
	return p, nil
}

func compareFloat(a Assertion, subject string, actual float64) error {
	tol := a.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	if math.Abs(actual-a.Expect) > tol {
		return &AssertionError{
			Type:     a.Type,
			Subject:  subject,
			Expected: fmt.Sprintf("%s (±%g)", formatValue(a.Expect), tol),
			Actual:   formatValue(actual),
		}
	}
	return nil
}

func formatValue(v float64) string {
	return fmt.Sprintf("%g", v)
}
