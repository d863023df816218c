package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/ffspoints/internal/point"
)

// counterBatch accumulates pending usecount increments in first-queued order.
// Not safe for concurrent use; Store.mu guards it.
type counterBatch struct {
	order   []string
	pending map[string]int64
}

// useCountDelta is one drained entry of the batch.
type useCountDelta struct {
	ID string
	N  int64
}

func newCounterBatch() *counterBatch {
	return &counterBatch{pending: make(map[string]int64)}
}

func (b *counterBatch) add(id string, n int64) {
	if _, ok := b.pending[id]; !ok {
		b.order = append(b.order, id)
	}
	b.pending[id] += n
}

// len returns the number of distinct ids with a pending increment.
func (b *counterBatch) len() int {
	return len(b.order)
}

// drain empties the batch and returns its entries in first-queued order.
func (b *counterBatch) drain() []useCountDelta {
	out := make([]useCountDelta, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, useCountDelta{ID: id, N: b.pending[id]})
	}
	b.order = nil
	b.pending = make(map[string]int64)
	return out
}

// restore puts drained entries back after a failed flush. Increments queued
// since the drain are kept and merged.
func (b *counterBatch) restore(deltas []useCountDelta) {
	for _, d := range deltas {
		b.add(d.ID, d.N)
	}
}

// QueueUseCount records one pending usecount increment for id.
// The increment is written by the next Commit or Update.
func (s *Store) QueueUseCount(id string) {
	id = point.NormalizeID(id)
	if id == "" || id == point.Escape {
		return
	}
	s.mu.Lock()
	s.batch.add(id, 1)
	s.mu.Unlock()
}

// PendingUseCounts returns the number of ids with unflushed increments.
func (s *Store) PendingUseCounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch.len()
}

// flushUseCounts writes deltas as chunked conditional updates:
//
//	UPDATE configpoints SET usecount = usecount + CASE id WHEN ? THEN ? ... ELSE 0 END
//	WHERE id IN (?, ...)
//
// Each chunk names at most chunkSize ids. Ids that no longer exist are
// skipped by the WHERE clause. The caller owns the transaction.
func flushUseCounts(ctx context.Context, q querier, deltas []useCountDelta, chunkSize int) error {
	for start := 0; start < len(deltas); start += chunkSize {
		end := min(start+chunkSize, len(deltas))
		chunk := deltas[start:end]

		var cases strings.Builder
		args := make([]any, 0, 3*len(chunk))
		for _, d := range chunk {
			cases.WriteString(" WHEN ? THEN ?")
			args = append(args, d.ID, d.N)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		var total int64
		for _, d := range chunk {
			args = append(args, d.ID)
			total += d.N
		}

		query := fmt.Sprintf(
			"UPDATE configpoints SET usecount = usecount + CASE id%s ELSE 0 END WHERE id IN (%s)",
			cases.String(), placeholders,
		)
		if _, err := q.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("flush usecounts: %w", err)
		}
		FlushStatementsTotal.Inc()
		UseCountsFlushedTotal.Add(float64(total))
	}
	return nil
}
