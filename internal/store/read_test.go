package store

import (
	"context"
	"errors"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ffspoints/internal/point"
)

// seedTree stores:
//
//	interface 0: a (w=0.5), b (w=0.5), x (failed)
//	interface 1: a1, a2 (origin a), b1 (origin b), bf (failed, origin b)
func seedTree(t *testing.T, s *Store) {
	t.Helper()
	for _, p := range []point.Point{
		{ID: "a", OriginID: point.Escape, Interface: 0, Payload: "A", Weight: 0.5, CalcSteps: 5},
		{ID: "b", OriginID: point.Escape, Interface: 0, Payload: "B", Weight: 0.5, CalcSteps: 6},
		{ID: "x", OriginID: point.Escape, Interface: 0, CalcSteps: 2},
		{ID: "a1", OriginID: "a", Interface: 1, Payload: "A1", Seed: 11},
		{ID: "a2", OriginID: "a", Interface: 1, Payload: "A2", Seed: 12},
		{ID: "b1", OriginID: "b", Interface: 1, Payload: "B1", Seed: 21},
		{ID: "bf", OriginID: "b", Interface: 1, Seed: 22},
	} {
		mustAdd(t, s, p)
	}
}

func TestCounterBatch_AccumulatesAndFlushesOnce(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, createTestPoint("p1", point.Escape, 0))

	s.QueueUseCount("p1")
	s.QueueUseCount("p1")
	s.QueueUseCount("p1")
	assert.Equal(t, 1, s.PendingUseCounts())

	require.NoError(t, s.Commit(ctx))
	assert.Equal(t, 0, s.PendingUseCounts())

	// A second commit with nothing pending changes nothing.
	require.NoError(t, s.Commit(ctx))

	got, _, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.UseCount)
}

func TestCounterBatch_ChunkBoundaries(t *testing.T) {
	for _, chunk := range []int{1, 2, 3, 10000} {
		t.Run("", func(t *testing.T) {
			s := createTestStore(t, WithFlushChunkSize(chunk))
			ctx := context.Background()

			ids := []string{"p1", "p2", "p3", "p4", "p5"}
			for _, id := range ids {
				mustAdd(t, s, createTestPoint(id, point.Escape, 0))
			}
			want := map[string]int64{"p1": 3, "p2": 1, "p3": 2, "p4": 0, "p5": 1}
			for _, id := range []string{"p1", "p3", "p1", "p2", "p5", "p3", "p1"} {
				s.QueueUseCount(id)
			}

			stmtsBefore := promtest.ToFloat64(FlushStatementsTotal)
			require.NoError(t, s.Commit(ctx))
			wantStmts := (4 + chunk - 1) / chunk
			assert.Equal(t, float64(wantStmts), promtest.ToFloat64(FlushStatementsTotal)-stmtsBefore)

			for _, id := range ids {
				got, _, err := s.GetByID(ctx, id)
				require.NoError(t, err)
				assert.Equal(t, want[id], got.UseCount, id)
			}
		})
	}
}

func TestCounterBatch_IgnoresEscapeAndUnknownIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, createTestPoint("p1", point.Escape, 0))

	s.QueueUseCount(point.Escape)
	assert.Equal(t, 0, s.PendingUseCounts())

	s.QueueUseCount("ghost_only")
	s.QueueUseCount("p1")
	require.NoError(t, s.Commit(ctx))

	got, _, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UseCount)
}

func TestCounterBatch_DrainRestoreKeepsOrder(t *testing.T) {
	b := newCounterBatch()
	b.add("a", 1)
	b.add("b", 2)
	b.add("a", 1)

	drained := b.drain()
	assert.Equal(t, []useCountDelta{{"a", 2}, {"b", 2}}, drained)
	assert.Equal(t, 0, b.len())

	b.restore(drained)
	b.add("c", 1)
	assert.Equal(t, []useCountDelta{{"a", 2}, {"b", 2}, {"c", 1}}, b.drain())
}

func TestUpdate_FailureRestoresBatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustAdd(t, s, createTestPoint("p1", point.Escape, 0))
	s.QueueUseCount("p1")

	boom := errors.New("boom")
	err := s.Update(ctx, func(tx *Tx) error {
		_, err := tx.SetWeights(ctx, 0, 7)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, s.PendingUseCounts(), "drained increments are restored")

	got, _, err := s.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.UseCount, "GetByID flushes the restored batch")
	assert.Zero(t, got.Weight, "weights written by the failed callback are rolled back")
}

func TestUpdate_FlushVisibleInsideTx(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)
	s.QueueUseCount("a")
	s.QueueUseCount("a")

	err := s.Update(ctx, func(tx *Tx) error {
		parents, err := tx.UsedParents(ctx, 0)
		if err != nil {
			return err
		}
		assert.Equal(t, []ParentWeight{{ID: "a", Weight: 0.5, UseCount: 2}}, parents)

		n, err := tx.SetChildWeights(ctx, 1, "a", 0.25)
		if err != nil {
			return err
		}
		assert.Equal(t, int64(2), n)

		used, err := tx.SumWeight(ctx, point.ForInterface(0).Used())
		assert.InDelta(t, 0.5, used, 1e-12)
		return err
	})
	require.NoError(t, err)

	w, err := s.QueryAggregate(ctx, point.SumOf(point.ColumnWeight), point.ForInterface(1))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, w, 1e-12)
}

func TestQueryAggregate(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)
	_, err := s.Deactivate(ctx, "b1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		agg    point.Aggregate
		filter point.Filter
		want   float64
	}{
		{"count all at 0", point.CountOf(), point.ForInterface(0), 3},
		{"count success at 0", point.CountOf(), point.ForInterface(0).Successful(), 2},
		{"count failed at 0", point.CountOf(), point.ForInterface(0).Failed(), 1},
		{"deactivated excluded", point.CountOf(), point.ForInterface(1), 3},
		{"deactivated included", point.CountOf(), point.ForInterface(1).WithDeactivated(), 4},
		{"by origin", point.CountOf(), point.ForInterface(1).WithOrigin("a"), 2},
		{"sum weight", point.SumOf(point.ColumnWeight), point.ForInterface(0).Successful(), 1},
		{"sum steps all", point.SumOf(point.ColumnCalcSteps), point.AllPoints(), 13},
		{"max steps", point.MaxOf(point.ColumnCalcSteps), point.ForInterface(0), 6},
		{"avg steps", point.AvgOf(point.ColumnCalcSteps), point.ForInterface(0).Successful(), 5.5},
		{"empty sum is zero", point.SumOf(point.ColumnWeight), point.ForInterface(9), 0},
		{"empty max is zero", point.MaxOf(point.ColumnRCValue), point.ForInterface(9), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryAggregate(ctx, tt.agg, tt.filter)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestQueryAggregate_UsageFlushesFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	s.QueueUseCount("a")
	used, err := s.QueryAggregate(ctx, point.SumOf(point.ColumnWeight), point.ForInterface(0).Used())
	require.NoError(t, err)
	assert.InDelta(t, 0.5, used, 1e-12)
	assert.Equal(t, 0, s.PendingUseCounts())
}

func TestQueryAggregate_RejectsUnknownColumn(t *testing.T) {
	s := createTestStore(t)
	_, err := s.QueryAggregate(context.Background(),
		point.SumOf(point.Column("payload")), point.AllPoints())
	require.Error(t, err)
}

func TestListInterface_Options(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)
	_, err := s.Deactivate(ctx, "a2")
	require.NoError(t, err)

	ids := func(pts []point.Point) []string {
		var out []string
		for _, p := range pts {
			out = append(out, p.ID)
		}
		return out
	}

	pts, err := s.ListInterface(ctx, 1, ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1"}, ids(pts))

	pts, err = s.ListInterface(ctx, 1, ListOptions{IncludeFailed: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "b1", "bf"}, ids(pts))

	pts, err = s.ListInterface(ctx, 1, ListOptions{IncludeFailed: true, IncludeDeactivated: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1", "bf"}, ids(pts))
}

func TestGetByID_NotFound(t *testing.T) {
	s := createTestStore(t)
	p, ok, err := s.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, point.Point{}, p)
}

func TestSampleableAndIDs(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	cands, err := s.ListSampleable(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []point.Candidate{
		{ID: "a", Payload: "A", Weight: 0.5},
		{ID: "b", Payload: "B", Weight: 0.5},
	}, cands)

	ids, err := s.SuccessIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "b1"}, ids)

	origins, err := s.OriginIDs(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a", "b"}, origins)
}

func TestLineageReads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)

	runs, err := s.RunsOnPoint(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), runs, "failed children count as runs")

	children, err := s.Children(ctx, "a")
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "a1", children[0].ID)

	id, ok, err := s.ChildBySeed(ctx, "a", 12)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a2", id)

	_, ok, err = s.ChildBySeed(ctx, "a", 99)
	require.NoError(t, err)
	assert.False(t, ok)

	origins, err := s.OriginsOf(ctx, []string{"b1", "a2", "a1", "unknown"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, origins)
}

func TestIdleReads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	seedTree(t, s)
	s.QueueUseCount("a1")

	child, ok, err := s.IdleChild(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a2", child.ID, "a1 was used; the flush is visible")

	n, err := s.CountIdleChildren(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err = s.IdleChild(ctx, "a1")
	require.NoError(t, err)
	assert.False(t, ok)

	origins, err := s.IdleOrigins(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, origins)

	ends, err := s.Endpoints(ctx)
	require.NoError(t, err)
	var endIDs []string
	for _, p := range ends {
		endIDs = append(endIDs, p.ID)
	}
	// a and b have no recorded usecount; a1 has been used.
	assert.Equal(t, []string{"a", "b", "a2", "b1"}, endIDs)
}

func TestSummaryReads(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	maxIface, err := s.MaxInterface(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, maxIface)

	_, ok, err := s.MostRecentEscape(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	seedTree(t, s)

	maxIface, err = s.MaxInterface(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, maxIface)

	latest, ok, err := s.MostRecentEscape(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", latest.ID, "x failed and is not an escape point")

	counts, err := s.InterfaceCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []point.InterfaceCounts{
		{Interface: 0, Success: 2, Failed: 1, TotalWeight: 1},
		{Interface: 1, Success: 3, Failed: 1, TotalWeight: 0},
	}, counts)
}
