package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/ffspoints/internal/point"
	"github.com/roach88/ffspoints/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "points.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func trial(id, origin string, iface int) point.Point {
	return point.Point{ID: id, OriginID: origin, Interface: iface, Payload: "cfg-" + id, CalcSteps: 10}
}

// runEngine starts Run in the background and returns a function that stops
// the engine and waits for Run's result.
func runEngine(t *testing.T, e *Engine) func() error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()
	return func() error {
		e.Stop()
		select {
		case err := <-done:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("engine did not stop")
			return nil
		}
	}
}

func TestEngine_RecordsTrialsAndUseCounts(t *testing.T) {
	s := setupTestStore(t)
	e := New(s)
	stop := runEngine(t, e)
	ctx := context.Background()

	root, err := e.Submit(ctx, trial("A", point.Escape, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(1), root.Seq)

	for _, id := range []string{"B", "C"} {
		_, err := e.Submit(ctx, trial(id, "A", 1))
		require.NoError(t, err)
	}

	reply := make(chan Result, 1)
	require.True(t, e.ReportCost("B", 5, 0.5, reply))
	r := <-reply
	require.NoError(t, r.Err)
	assert.True(t, r.Found)
	assert.Equal(t, EventTypeCost, r.Type)

	require.NoError(t, stop())
	assert.Equal(t, 0, s.PendingUseCounts(), "stop commits the batch")

	a, ok, err := s.GetByID(ctx, "A")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(2), a.UseCount)

	b, _, err := s.GetByID(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, int64(15), b.CalcSteps)
}

func TestEngine_NonFatalErrorsContinue(t *testing.T) {
	s := setupTestStore(t)
	e := New(s)
	stop := runEngine(t, e)
	ctx := context.Background()

	_, err := e.Submit(ctx, trial("orphan", "nobody", 1))
	require.Error(t, err)
	var pe *point.Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, point.ErrCodeUnknownOrigin, pe.Code)

	reply := make(chan Result, 1)
	e.ReportCost("missing", 1, 0, reply)
	r := <-reply
	require.NoError(t, r.Err)
	assert.False(t, r.Found)

	_, err = e.Submit(ctx, trial("A", point.Escape, 0))
	require.NoError(t, err, "the loop keeps running after a rejected report")

	require.NoError(t, stop())
}

func TestEngine_ConcurrentProducers(t *testing.T) {
	s := setupTestStore(t)
	e := New(s, WithCommitEvery(7))
	stop := runEngine(t, e)

	ctx := context.Background()
	_, err := e.Submit(ctx, trial("root", point.Escape, 0))
	require.NoError(t, err)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < 8; w++ {
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				if _, err := e.Submit(gctx, trial(fmt.Sprintf("w%d-%d", w, i), "root", 1)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.NoError(t, stop())

	n, err := s.QueryAggregate(ctx, point.CountOf(), point.ForInterface(1))
	require.NoError(t, err)
	assert.Equal(t, float64(160), n)

	root, _, err := s.GetByID(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, int64(160), root.UseCount)

	assert.Equal(t, int64(161), e.Clock().Current(), "one ticket per report")
}

// fakeStore records calls and fails on demand.
type fakeStore struct {
	added   []string
	queued  []string
	commits int
	failOn  string
	failErr error
}

func (f *fakeStore) AddPoint(_ context.Context, p point.Point) (point.Point, error) {
	if p.ID == f.failOn {
		return point.Point{}, f.failErr
	}
	f.added = append(f.added, p.ID)
	p.Seq = int64(len(f.added))
	return p, nil
}

func (f *fakeStore) QueueUseCount(id string) { f.queued = append(f.queued, id) }

func (f *fakeStore) AddCost(context.Context, string, int64, float64) (bool, error) {
	return true, nil
}

func (f *fakeStore) Commit(context.Context) error {
	f.commits++
	return nil
}

func TestEngine_CommitEvery(t *testing.T) {
	fs := &fakeStore{}
	e := New(fs, WithCommitEvery(3))
	for i := 0; i < 7; i++ {
		require.True(t, e.Report(trial(fmt.Sprintf("p%d", i), point.Escape, 0), nil))
	}
	e.Stop()
	require.NoError(t, e.Run(context.Background()))

	assert.Len(t, fs.added, 7)
	assert.Len(t, fs.queued, 7)
	// Two periodic commits plus the final one on stop.
	assert.Equal(t, 3, fs.commits)
	assert.Equal(t, 0, e.QueueLen())
}

func TestEngine_WriteExhaustedStopsRun(t *testing.T) {
	fs := &fakeStore{
		failOn:  "bad",
		failErr: point.NewWriteExhausted("add point", "bad", 3, errors.New("database is locked")),
	}
	e := New(fs)

	first := make(chan Result, 1)
	failed := make(chan Result, 1)
	after := make(chan Result, 1)
	e.Report(trial("ok", point.Escape, 0), first)
	e.Report(trial("bad", point.Escape, 0), failed)
	e.Report(trial("late", point.Escape, 0), after)

	err := e.Run(context.Background())
	require.Error(t, err)
	assert.True(t, point.IsWriteExhausted(err))

	require.NoError(t, (<-first).Err)
	assert.True(t, point.IsWriteExhausted((<-failed).Err))
	assert.ErrorIs(t, (<-after).Err, ErrStopped)
	assert.Equal(t, []string{"ok"}, fs.added)

	assert.False(t, e.Report(trial("x", point.Escape, 0), nil))
	_, err = e.Submit(context.Background(), trial("y", point.Escape, 0))
	assert.ErrorIs(t, err, ErrStopped)
}

func TestEngine_ContextCancel(t *testing.T) {
	fs := &fakeStore{}
	e := New(fs)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	_, err := e.Submit(context.Background(), trial("A", point.Escape, 0))
	require.NoError(t, err)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
	assert.Equal(t, 1, fs.commits, "pending usecounts are committed on cancel")
}
