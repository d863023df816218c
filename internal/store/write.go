package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/ffspoints/internal/point"
)

// writeTx runs f in its own write transaction under the writer lock,
// retrying transient failures. Callers must not hold s.mu.
func (s *Store) writeTx(ctx context.Context, op, pointID string, f func(tx *sql.Tx) error) error {
	return s.withRetry(ctx, op, pointID, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		defer tx.Rollback() // no-op after Commit

		if err := f(tx); err != nil {
			return err
		}
		return tx.Commit()
	})
}

// AddPoint records one trial result and returns it as stored.
//
// A missing id is generated, Success is derived from the payload and Seq is
// assigned from the store clock. Unless the store was opened with
// WithoutOriginCheck, the origin must be a stored point or point.Escape.
// Transient failures are retried; exhaustion returns WRITE_EXHAUSTED.
func (s *Store) AddPoint(ctx context.Context, p point.Point) (point.Point, error) {
	p.ID = point.NormalizeID(p.ID)
	p.OriginID = point.NormalizeID(p.OriginID)
	if p.ID == "" {
		p.ID = s.opts.ids.Generate()
	}
	p.Success = p.Payload != ""
	if err := p.Validate(); err != nil {
		return point.Point{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.Seq = s.clock.Next()
	err := s.writeTx(ctx, "add point", p.ID, func(tx *sql.Tx) error {
		return s.insertPoint(ctx, tx, p)
	})
	if err != nil {
		return point.Point{}, fmt.Errorf("add point: %w", err)
	}

	PointsInsertedTotal.Inc()
	if p.Success {
		s.invalidateSuccessCount(p.Interface)
	}
	return p, nil
}

func (s *Store) insertPoint(ctx context.Context, tx *sql.Tx, p point.Point) error {
	exists, err := idExists(ctx, tx, p.ID)
	if err != nil {
		return err
	}
	if exists {
		return &point.Error{
			Code:      point.ErrCodeInvalidPoint,
			Op:        "add point",
			Interface: p.Interface,
			PointID:   p.ID,
			Message:   "id already exists",
		}
	}

	if s.opts.checkOrigin && !p.IsRoot() {
		ok, err := idExists(ctx, tx, p.OriginID)
		if err != nil {
			return err
		}
		if !ok {
			return &point.Error{
				Code:      point.ErrCodeUnknownOrigin,
				Op:        "add point",
				Interface: p.Interface,
				PointID:   p.ID,
				Message:   fmt.Sprintf("origin %q is not a stored point", p.OriginID),
			}
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO configpoints (`+pointColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.Seq, p.Interface, p.Payload, p.OriginID,
		p.CalcSteps, p.CTime, p.Runtime,
		p.Success, p.RunCount, p.Seed, p.Weight, p.RCValue, p.LambdaPos,
		p.UseCount, p.Deactivated, p.UUID, p.CustomData,
	)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func idExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM configpoints WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup %q: %w", id, err)
	}
	return true, nil
}

// AddCost adds simulated steps and time to an existing point, used when a
// worker extends the point's segment. Returns false if id is not stored.
func (s *Store) AddCost(ctx context.Context, id string, steps int64, t float64) (bool, error) {
	id = point.NormalizeID(id)
	if steps < 0 || t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return false, &point.Error{
			Code:    point.ErrCodeInvalidPoint,
			Op:      "add cost",
			PointID: id,
			Message: fmt.Sprintf("cost must be non-negative, got steps=%d time=%v", steps, t),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool
	err := s.writeTx(ctx, "add cost", id, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE configpoints SET ctime = ctime + ?, calc_steps = calc_steps + ?
			WHERE id = ?
		`, t, steps, id)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("add cost: %w", err)
	}
	return found, nil
}

// Deactivate soft-deletes a point. It stays readable by id but leaves every
// sampling and aggregate query. Returns false if id is unknown or already
// deactivated.
func (s *Store) Deactivate(ctx context.Context, id string) (bool, error) {
	id = point.NormalizeID(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		found bool
		iface int
	)
	err := s.writeTx(ctx, "deactivate", id, func(tx *sql.Tx) error {
		found = false
		err := tx.QueryRowContext(ctx,
			`SELECT interface FROM configpoints WHERE id = ? AND deactivated = 0`, id,
		).Scan(&iface)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lookup: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE configpoints SET deactivated = 1 WHERE id = ?`, id,
		); err != nil {
			return fmt.Errorf("update: %w", err)
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deactivate: %w", err)
	}
	if found {
		s.invalidateSuccessCount(iface)
	}
	return found, nil
}

// DeleteOrigin physically removes the row that matches p field for field.
// It is the cleanup step for superseded ghost lines; a row that changed since
// p was read (cost accretion, reweighting) is left alone.
// Returns false when no row matched.
func (s *Store) DeleteOrigin(ctx context.Context, p point.Point) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var found bool
	err := s.writeTx(ctx, "delete origin", p.ID, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM configpoints
			WHERE interface = ? AND payload = ? AND origin_id = ? AND calc_steps = ?
			  AND ctime = ? AND runtime = ? AND success = ? AND run_count = ?
			  AND id = ? AND seed = ? AND weight = ?
		`,
			p.Interface, p.Payload, p.OriginID, p.CalcSteps,
			p.CTime, p.Runtime, p.Success, p.RunCount,
			p.ID, p.Seed, p.Weight,
		)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		found = n > 0
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("delete origin: %w", err)
	}
	if found {
		s.invalidateSuccessCount(p.Interface)
	}
	return found, nil
}
