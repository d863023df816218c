package point

import (
	"fmt"
	"math"
)

// Escape is the origin sentinel of trajectories started in the initial
// basin. Traceback stops when it reaches this id.
const Escape = "escape"

// Point is one trial configuration recorded on an interface.
type Point struct {
	Interface   int     `json:"interface"`
	Payload     string  `json:"payload"`
	OriginID    string  `json:"origin_id"`
	CalcSteps   int64   `json:"calc_steps"`
	CTime       float64 `json:"ctime"`
	Runtime     float64 `json:"runtime"`
	Success     bool    `json:"success"`
	RunCount    int64   `json:"run_count"`
	ID          string  `json:"id"`
	Seed        int64   `json:"seed"`
	Weight      float64 `json:"weight"`
	RCValue     float64 `json:"rc_value"`
	LambdaPos   float64 `json:"lambda_pos"`
	UseCount    int64   `json:"usecount"`
	Deactivated bool    `json:"deactivated"`
	UUID        string  `json:"uuid"`
	CustomData  string  `json:"custom_data"`

	// Seq is the monotonic insertion marker assigned by the store.
	Seq int64 `json:"seq"`
}

// IsRoot reports whether the point was launched from the escape sentinel.
func (p Point) IsRoot() bool {
	return p.OriginID == Escape
}

// Validate checks the record-level invariants that do not need the store.
// Referential checks (origin existence) are the store's job.
func (p Point) Validate() error {
	switch {
	case p.ID == "":
		return invalid(p, "id is required")
	case p.ID == Escape:
		return invalid(p, "id %q is reserved for the root origin", Escape)
	case p.OriginID == "":
		return invalid(p, "origin id is required (use %q for roots)", Escape)
	case p.OriginID == p.ID:
		return invalid(p, "point cannot be its own origin")
	case p.Interface < 0:
		return invalid(p, "interface must be >= 0, got %d", p.Interface)
	case p.CalcSteps < 0:
		return invalid(p, "calc steps must be >= 0, got %d", p.CalcSteps)
	case p.CTime < 0 || math.IsNaN(p.CTime) || math.IsInf(p.CTime, 0):
		return invalid(p, "ctime must be finite and >= 0, got %v", p.CTime)
	case p.Runtime < 0 || math.IsNaN(p.Runtime) || math.IsInf(p.Runtime, 0):
		return invalid(p, "runtime must be finite and >= 0, got %v", p.Runtime)
	case p.Weight < 0 || math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0):
		return invalid(p, "weight must be finite and >= 0, got %v", p.Weight)
	case p.UseCount < 0:
		return invalid(p, "usecount must be >= 0, got %d", p.UseCount)
	case p.Success != (p.Payload != ""):
		return invalid(p, "success must be set iff payload is non-empty")
	}
	return nil
}

func invalid(p Point, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeInvalidPoint,
		Op:        "validate",
		Interface: p.Interface,
		PointID:   p.ID,
		Message:   fmt.Sprintf(format, args...),
	}
}

// Candidate is the projection the samplers draw from.
type Candidate struct {
	ID      string  `json:"id"`
	Payload string  `json:"payload"`
	Weight  float64 `json:"weight"`
}

// InterfaceCounts summarizes the active points of one interface.
type InterfaceCounts struct {
	Interface   int     `json:"interface"`
	Success     int64   `json:"success"`
	Failed      int64   `json:"failed"`
	TotalWeight float64 `json:"total_weight"`
}

// All returns the number of active points, successful or not.
func (c InterfaceCounts) All() int64 {
	return c.Success + c.Failed
}
