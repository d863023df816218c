package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/roach88/ffspoints/internal/point"
)

// Tx is the view of an Update transaction handed to the callback.
// It is only valid inside the callback.
type Tx struct {
	tx *sql.Tx
}

// ParentWeight is the projection used by weight redistribution.
type ParentWeight struct {
	ID       string
	Weight   float64
	UseCount int64
}

// Update runs fn inside one write transaction.
//
// Update takes the writer lock, drains the counter batch, begins a
// transaction, flushes the drained increments, runs fn and commits. Readers
// never see the flush or fn's writes partially applied. Transient failures
// retry the whole transaction, so fn may run more than once and must not have
// side effects outside the Tx. If the transaction ultimately fails the drained
// increments are put back in the batch.
//
// fn must only use the Tx; calling Store methods from inside fn deadlocks.
func (s *Store) Update(ctx context.Context, fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deltas := s.batch.drain()
	err := s.withRetry(ctx, "update", "", func() error {
		return s.runTx(ctx, deltas, fn)
	})
	if err != nil {
		s.batch.restore(deltas)
		return fmt.Errorf("update: %w", err)
	}

	if len(deltas) > 0 {
		slog.Debug("usecounts flushed", "ids", len(deltas))
	}
	return nil
}

func (s *Store) runTx(ctx context.Context, deltas []useCountDelta, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() // no-op after Commit

	if err := flushUseCounts(ctx, tx, deltas, s.opts.flushChunkSize); err != nil {
		return err
	}
	if fn != nil {
		if err := fn(&Tx{tx: tx}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Commit flushes the counter batch in its own transaction.
// It is a no-op when nothing is pending.
func (s *Store) Commit(ctx context.Context) error {
	if s.PendingUseCounts() == 0 {
		return nil
	}
	if err := s.Update(ctx, nil); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// flushIfPending gives usecount-dependent reads read-after-write consistency.
func (s *Store) flushIfPending(ctx context.Context) error {
	return s.Commit(ctx)
}

// Aggregate evaluates agg over the rows selected by f.
func (t *Tx) Aggregate(ctx context.Context, agg point.Aggregate, f point.Filter) (float64, error) {
	return queryAggregate(ctx, t.tx, agg, f)
}

// SumWeight returns the total weight of the rows selected by f.
func (t *Tx) SumWeight(ctx context.Context, f point.Filter) (float64, error) {
	return queryAggregate(ctx, t.tx, point.SumOf(point.ColumnWeight), f)
}

// Count returns the number of rows selected by f.
func (t *Tx) Count(ctx context.Context, f point.Filter) (int64, error) {
	n, err := queryAggregate(ctx, t.tx, point.CountOf(), f)
	return int64(n), err
}

// UsedParents returns the active points at iface with usecount > 0,
// in insertion order.
func (t *Tx) UsedParents(ctx context.Context, iface int) ([]ParentWeight, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, weight, usecount FROM configpoints
		WHERE interface = ? AND deactivated = 0 AND usecount > 0
		ORDER BY seq ASC, id ASC
	`, iface)
	if err != nil {
		return nil, fmt.Errorf("used parents: %w", err)
	}
	defer rows.Close()

	var out []ParentWeight
	for rows.Next() {
		var p ParentWeight
		if err := rows.Scan(&p.ID, &p.Weight, &p.UseCount); err != nil {
			return nil, fmt.Errorf("used parents: scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("used parents: %w", err)
	}
	return out, nil
}

// SetChildWeights assigns w to every active point at iface launched from origin.
// Returns the number of rows updated.
func (t *Tx) SetChildWeights(ctx context.Context, iface int, origin string, w float64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE configpoints SET weight = ?
		WHERE interface = ? AND origin_id = ? AND deactivated = 0
	`, w, iface, origin)
	if err != nil {
		return 0, fmt.Errorf("set child weights: %w", err)
	}
	return res.RowsAffected()
}

// ScaleWeights multiplies the weight of every active point at iface by factor.
func (t *Tx) ScaleWeights(ctx context.Context, iface int, factor float64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE configpoints SET weight = weight * ?
		WHERE interface = ? AND deactivated = 0
	`, factor, iface)
	if err != nil {
		return 0, fmt.Errorf("scale weights: %w", err)
	}
	return res.RowsAffected()
}

// SetWeights overwrites the weight of every active point at iface with w.
func (t *Tx) SetWeights(ctx context.Context, iface int, w float64) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE configpoints SET weight = ?
		WHERE interface = ? AND deactivated = 0
	`, w, iface)
	if err != nil {
		return 0, fmt.Errorf("set weights: %w", err)
	}
	return res.RowsAffected()
}
