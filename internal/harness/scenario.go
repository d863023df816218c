package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/weights"
)

// Scenario is a scripted run against a fresh point store.
// Steps are applied in order; assertions are checked against the final state.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// IDPrefix seeds the generator used for points reported without an id.
	// Defaults to "w0".
	IDPrefix string `yaml:"id_prefix,omitempty"`

	// CommitEvery is passed to the ingest engine. Defaults to 1 so every
	// report is visible to the next step.
	CommitEvery int `yaml:"commit_every,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one operation against the store. Which fields apply depends on Action.
type Step struct {
	// Action is one of report, cost, complete, deactivate, commit.
	Action string `yaml:"action"`

	// Point is the trial to report (report).
	Point *PointRecord `yaml:"point,omitempty"`

	// ID names the target point (cost, deactivate).
	ID string `yaml:"id,omitempty"`

	// Steps and Time extend a point's cost (cost).
	Steps int64   `yaml:"steps,omitempty"`
	Time  float64 `yaml:"time,omitempty"`

	// Interface and Mode select the interface to complete (complete).
	Interface int    `yaml:"interface,omitempty"`
	Mode      string `yaml:"mode,omitempty"`

	// ExpectError is the error code the step must fail with. Empty means
	// the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// PointRecord is the YAML form of a reported trial.
type PointRecord struct {
	ID        string  `yaml:"id,omitempty"`
	Origin    string  `yaml:"origin"`
	Interface int     `yaml:"interface"`
	Payload   string  `yaml:"payload,omitempty"`
	CalcSteps int64   `yaml:"calc_steps,omitempty"`
	CTime     float64 `yaml:"ctime,omitempty"`
	Seed      int64   `yaml:"seed,omitempty"`
	Weight    float64 `yaml:"weight,omitempty"`
	LambdaPos float64 `yaml:"lambda_pos,omitempty"`
}

// Point converts the record. Success follows from the payload.
func (s PointRecord) Point() point.Point {
	return point.Point{
		ID:        s.ID,
		OriginID:  s.Origin,
		Interface: s.Interface,
		Payload:   s.Payload,
		CalcSteps: s.CalcSteps,
		CTime:     s.CTime,
		Seed:      s.Seed,
		Weight:    s.Weight,
		LambdaPos: s.LambdaPos,
		Success:   s.Payload != "",
	}
}

// Assertion checks one value of the final state.
type Assertion struct {
	// Type is one of count, weight, usecount, trace_cost, estimate.
	Type string `yaml:"type"`

	// ID names the point (weight, usecount, trace_cost).
	ID string `yaml:"id,omitempty"`

	// Interface selects the interface (count, estimate).
	Interface int `yaml:"interface,omitempty"`

	// Field selects probability or cumulative (estimate).
	Field string `yaml:"field,omitempty"`

	// Expect is the expected value.
	Expect float64 `yaml:"expect"`

	// Tolerance is the allowed absolute difference for float values.
	// Defaults to DefaultTolerance.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// Step actions.
const (
	ActionReport     = "report"
	ActionCost       = "cost"
	ActionComplete   = "complete"
	ActionDeactivate = "deactivate"
	ActionCommit     = "commit"
)

// Assertion types.
const (
	AssertCount     = "count"
	AssertWeight    = "weight"
	AssertUseCount  = "usecount"
	AssertTraceCost = "trace_cost"
	AssertEstimate  = "estimate"
)

// DefaultTolerance is used by float assertions that set no tolerance.
const DefaultTolerance = 1e-9

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates a scenario document.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if s.CommitEvery < 0 {
		return fmt.Errorf("commit_every must be non-negative, got %d", s.CommitEvery)
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s Step) error {
	switch s.Action {
	case ActionReport:
		if s.Point == nil {
			return fmt.Errorf("steps[%d]: point is required for report", index)
		}
	case ActionCost:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for cost", index)
		}
	case ActionComplete:
		if s.Interface < 0 {
			return fmt.Errorf("steps[%d]: interface must be non-negative", index)
		}
		if s.Mode != "" {
			if _, err := weights.ParseMode(s.Mode); err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
		}
	case ActionDeactivate:
		if s.ID == "" {
			return fmt.Errorf("steps[%d]: id is required for deactivate", index)
		}
	case ActionCommit:
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertWeight, AssertUseCount, AssertTraceCost:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for %s", index, a.Type)
		}
	case AssertCount:
		if a.Expect < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertEstimate:
		if a.Field != "probability" && a.Field != "cumulative" {
			return fmt.Errorf("assertions[%d]: field must be probability or cumulative, got %q", index, a.Field)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	if a.Tolerance < 0 {
		return fmt.Errorf("assertions[%d]: tolerance must be non-negative", index)
	}
	return nil
}
