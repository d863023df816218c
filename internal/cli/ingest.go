package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/roach88/ffspoints/internal/engine"
	"github.com/roach88/ffspoints/internal/point"
)

// TrialRecord is one trial in an ingest file.
type TrialRecord struct {
	ID         string  `yaml:"id"`
	Origin     string  `yaml:"origin"`
	Interface  int     `yaml:"interface"`
	Payload    string  `yaml:"payload,omitempty"`
	CalcSteps  int64   `yaml:"calc_steps,omitempty"`
	CTime      float64 `yaml:"ctime,omitempty"`
	Runtime    float64 `yaml:"runtime,omitempty"`
	RunCount   int64   `yaml:"run_count,omitempty"`
	Seed       int64   `yaml:"seed,omitempty"`
	Weight     float64 `yaml:"weight,omitempty"`
	RCValue    float64 `yaml:"rc_value,omitempty"`
	LambdaPos  float64 `yaml:"lambda_pos,omitempty"`
	CustomData string  `yaml:"custom_data,omitempty"`
}

// Point converts the record. Success follows from the payload.
func (r TrialRecord) Point() point.Point {
	return point.Point{
		ID:         r.ID,
		OriginID:   r.Origin,
		Interface:  r.Interface,
		Payload:    r.Payload,
		CalcSteps:  r.CalcSteps,
		CTime:      r.CTime,
		Runtime:    r.Runtime,
		RunCount:   r.RunCount,
		Seed:       r.Seed,
		Weight:     r.Weight,
		RCValue:    r.RCValue,
		LambdaPos:  r.LambdaPos,
		CustomData: r.CustomData,
		Success:    r.Payload != "",
	}
}

// CostRecord is one cost extension in an ingest file.
type CostRecord struct {
	ID    string  `yaml:"id"`
	Steps int64   `yaml:"steps"`
	Time  float64 `yaml:"time"`
}

// IngestFile is the document read by the ingest command. Trials are
// reported before costs, each list in file order.
type IngestFile struct {
	Trials []TrialRecord `yaml:"trials"`
	Costs  []CostRecord  `yaml:"costs"`
}

// Rejected describes a report the engine did not apply.
type Rejected struct {
	Ticket int64  `json:"ticket"`
	ID     string `json:"id"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

// IngestResult is the output of the ingest command.
type IngestResult struct {
	Inserted     int        `json:"inserted"`
	CostsApplied int        `json:"costs_applied"`
	Rejected     []Rejected `json:"rejected"`
}

func (r IngestResult) WriteText(w io.Writer) error {
	fmt.Fprintf(w, "inserted: %d\ncosts applied: %d\nrejected: %d\n", r.Inserted, r.CostsApplied, len(r.Rejected))
	for _, rej := range r.Rejected {
		if _, err := fmt.Fprintf(w, "  #%d %s: %s\n", rej.Ticket, rej.ID, rej.Error); err != nil {
			return err
		}
	}
	return nil
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <file.yaml>",
		Short: "Record a batch of trial reports",
		Long: `Feed the trials and cost extensions of a YAML file through the
single-writer ingest engine. Rejected reports are listed and the rest are
applied; the command fails only if the store becomes unusable.

File layout:
  trials:
    - {id: A, origin: escape, interface: 0, payload: cfg-A, calc_steps: 10}
  costs:
    - {id: A, steps: 5, time: 0.2}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(rootOpts, cmd, args[0])
		},
	}
}

func readIngestFile(path string) (IngestFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return IngestFile{}, err
	}
	defer f.Close()

	var doc IngestFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return IngestFile{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func runIngest(opts *RootOptions, cmd *cobra.Command, path string) error {
	doc, err := readIngestFile(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read ingest file", err)
	}

	st, err := opts.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	eng := engine.New(st, engine.WithCommitEvery(opts.Config.CommitEvery))
	n := len(doc.Trials) + len(doc.Costs)
	replies := make(chan engine.Result, n)
	ids := make(map[int64]string, n)

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return eng.Run(ctx)
	})
	g.Go(func() error {
		defer eng.Stop()
		for _, t := range doc.Trials {
			if !eng.Report(t.Point(), replies) {
				return nil
			}
			ids[eng.Clock().Current()] = t.ID
		}
		for _, c := range doc.Costs {
			if !eng.ReportCost(c.ID, c.Steps, c.Time, replies) {
				return nil
			}
			ids[eng.Clock().Current()] = c.ID
		}
		return nil
	})
	runErr := g.Wait()
	close(replies)

	var res IngestResult
	for r := range replies {
		switch {
		case r.Err != nil:
			res.Rejected = append(res.Rejected, Rejected{
				Ticket: r.Ticket,
				ID:     ids[r.Ticket],
				Code:   ErrorCode(r.Err),
				Error:  r.Err.Error(),
			})
		case r.Type == engine.EventTypeTrial:
			res.Inserted++
		case r.Found:
			res.CostsApplied++
		default:
			res.Rejected = append(res.Rejected, Rejected{
				Ticket: r.Ticket,
				ID:     ids[r.Ticket],
				Code:   "UNKNOWN_POINT",
				Error:  "no point with this id",
			})
		}
	}
	if res.Rejected == nil {
		res.Rejected = []Rejected{}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return domainError("ingest stopped", runErr)
	}
	return opts.formatter(cmd).Success(res)
}
