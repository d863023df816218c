package harness

import "github.com/roach88/ffspoints/internal/point"

// TraceEvent records the outcome of one executed step.
type TraceEvent struct {
	Seq       int64  `json:"seq"`
	Action    string `json:"action"`
	ID        string `json:"id,omitempty"`
	Interface int    `json:"interface"`
	// Code is the error code of a failed step, empty on success.
	Code string `json:"code,omitempty"`
	// Total is the interface weight reported by a complete step.
	Total float64 `json:"total,omitempty"`
}

// PointState is the part of a stored point captured in snapshots.
type PointState struct {
	Seq         int64   `json:"seq"`
	ID          string  `json:"id"`
	Interface   int     `json:"interface"`
	Origin      string  `json:"origin"`
	Success     bool    `json:"success"`
	Weight      float64 `json:"weight"`
	UseCount    int64   `json:"usecount"`
	CalcSteps   int64   `json:"calc_steps"`
	CTime       float64 `json:"ctime"`
	Deactivated bool    `json:"deactivated"`
}

func newPointState(p point.Point) PointState {
	return PointState{
		Seq:         p.Seq,
		ID:          p.ID,
		Interface:   p.Interface,
		Origin:      p.OriginID,
		Success:     p.Success,
		Weight:      p.Weight,
		UseCount:    p.UseCount,
		CalcSteps:   p.CalcSteps,
		CTime:       p.CTime,
		Deactivated: p.Deactivated,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step behaved as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`

	// Points is the final store content ordered by seq.
	Points []PointState `json:"points"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Points: []PointState{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step outcome.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
