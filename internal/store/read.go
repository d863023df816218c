package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/ffspoints/internal/point"
)

// ListOptions widens ListInterface beyond active successful points.
type ListOptions struct {
	IncludeDeactivated bool
	IncludeFailed      bool
}

// GetByID returns the point with the given id, deactivated or not.
// A missing point is reported as (zero, false, nil).
func (s *Store) GetByID(ctx context.Context, id string) (point.Point, bool, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return point.Point{}, false, err
	}
	return getByID(ctx, s.rdb, point.NormalizeID(id))
}

func getByID(ctx context.Context, q querier, id string) (point.Point, bool, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pointColumns+` FROM configpoints WHERE id = ?`, id)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return point.Point{}, false, nil
	}
	if err != nil {
		return point.Point{}, false, fmt.Errorf("get point %q: %w", id, err)
	}
	return p, true, nil
}

// ListInterface returns the points at iface ordered by seq ASC, id ASC.
// By default only active successful points are returned.
func (s *Store) ListInterface(ctx context.Context, iface int, opts ListOptions) ([]point.Point, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return nil, err
	}

	f := point.ForInterface(iface)
	if !opts.IncludeFailed {
		f = f.Successful()
	}
	if opts.IncludeDeactivated {
		f = f.WithDeactivated()
	}
	where, args := whereClause(f)

	rows, err := s.rdb.QueryContext(ctx,
		`SELECT `+pointColumns+` FROM configpoints`+where+` ORDER BY seq ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list interface %d: %w", iface, err)
	}
	return collectPoints(rows, "list interface")
}

// ListSampleable returns the (id, payload, weight) projection of the active
// successful points at iface, ordered by seq ASC, id ASC.
func (s *Store) ListSampleable(ctx context.Context, iface int) ([]point.Candidate, error) {
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT id, payload, weight FROM configpoints
		WHERE interface = ? AND success = 1 AND deactivated = 0
		ORDER BY seq ASC, id ASC
	`, iface)
	if err != nil {
		return nil, fmt.Errorf("list sampleable: %w", err)
	}
	defer rows.Close()

	var out []point.Candidate
	for rows.Next() {
		var c point.Candidate
		if err := rows.Scan(&c.ID, &c.Payload, &c.Weight); err != nil {
			return nil, fmt.Errorf("list sampleable: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sampleable: %w", err)
	}
	return out, nil
}

// SuccessIDs returns the ids of the active successful points at iface
// in insertion order.
func (s *Store) SuccessIDs(ctx context.Context, iface int) ([]string, error) {
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT id FROM configpoints
		WHERE interface = ? AND success = 1 AND deactivated = 0
		ORDER BY seq ASC, id ASC
	`, iface)
	if err != nil {
		return nil, fmt.Errorf("success ids: %w", err)
	}
	return collectStrings(rows, "success ids")
}

// MostRecentEscape returns the latest active successful point at interface 0.
func (s *Store) MostRecentEscape(ctx context.Context) (point.Point, bool, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return point.Point{}, false, err
	}
	row := s.rdb.QueryRowContext(ctx, `
		SELECT `+pointColumns+` FROM configpoints
		WHERE interface = 0 AND success = 1 AND deactivated = 0
		ORDER BY seq DESC LIMIT 1
	`)
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return point.Point{}, false, nil
	}
	if err != nil {
		return point.Point{}, false, fmt.Errorf("most recent escape: %w", err)
	}
	return p, true, nil
}

// RunsOnPoint returns how many trials were launched from id, counting every
// stored child including deactivated ones.
func (s *Store) RunsOnPoint(ctx context.Context, id string) (int64, error) {
	var n int64
	err := s.rdb.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM configpoints WHERE origin_id = ?`, point.NormalizeID(id),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("runs on point: %w", err)
	}
	return n, nil
}

// IdleChild returns the oldest active child of origin that has not been
// used yet.
func (s *Store) IdleChild(ctx context.Context, origin string) (point.Point, bool, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return point.Point{}, false, err
	}
	row := s.rdb.QueryRowContext(ctx, `
		SELECT `+pointColumns+` FROM configpoints
		WHERE origin_id = ? AND usecount = 0 AND deactivated = 0
		ORDER BY seq ASC LIMIT 1
	`, point.NormalizeID(origin))
	p, err := scanPoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return point.Point{}, false, nil
	}
	if err != nil {
		return point.Point{}, false, fmt.Errorf("idle child: %w", err)
	}
	return p, true, nil
}

// CountIdleChildren returns the number of active unused children of origin.
func (s *Store) CountIdleChildren(ctx context.Context, origin string) (int64, error) {
	n, err := s.QueryAggregate(ctx, point.CountOf(),
		point.AllPoints().WithOrigin(point.NormalizeID(origin)).Unused())
	if err != nil {
		return 0, fmt.Errorf("count idle children: %w", err)
	}
	return int64(n), nil
}

// IdleOrigins returns the distinct origins of the active unused points at
// iface, in first-seen order.
func (s *Store) IdleOrigins(ctx context.Context, iface int) ([]string, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return nil, err
	}
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT origin_id FROM configpoints
		WHERE interface = ? AND usecount = 0 AND deactivated = 0
		GROUP BY origin_id
		ORDER BY MIN(seq) ASC
	`, iface)
	if err != nil {
		return nil, fmt.Errorf("idle origins: %w", err)
	}
	return collectStrings(rows, "idle origins")
}

// Children returns every stored point launched from id, in insertion order.
func (s *Store) Children(ctx context.Context, id string) ([]point.Point, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return nil, err
	}
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT `+pointColumns+` FROM configpoints
		WHERE origin_id = ?
		ORDER BY seq ASC, id ASC
	`, point.NormalizeID(id))
	if err != nil {
		return nil, fmt.Errorf("children: %w", err)
	}
	return collectPoints(rows, "children")
}

// ChildBySeed returns the id of the child of origin produced with seed.
func (s *Store) ChildBySeed(ctx context.Context, origin string, seed int64) (string, bool, error) {
	var id string
	err := s.rdb.QueryRowContext(ctx, `
		SELECT id FROM configpoints
		WHERE origin_id = ? AND seed = ?
		ORDER BY seq ASC LIMIT 1
	`, point.NormalizeID(origin), seed).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("child by seed: %w", err)
	}
	return id, true, nil
}

// OriginIDs returns the origin of every active successful point at iface,
// one entry per point, in insertion order.
func (s *Store) OriginIDs(ctx context.Context, iface int) ([]string, error) {
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT origin_id FROM configpoints
		WHERE interface = ? AND success = 1 AND deactivated = 0
		ORDER BY seq ASC, id ASC
	`, iface)
	if err != nil {
		return nil, fmt.Errorf("origin ids: %w", err)
	}
	return collectStrings(rows, "origin ids")
}

// originsChunk bounds the number of ids bound in one IN list.
const originsChunk = 500

// OriginsOf returns the distinct origins of the given points, sorted.
// Unknown ids are ignored.
func (s *Store) OriginsOf(ctx context.Context, ids []string) ([]string, error) {
	seen := make(map[string]struct{})
	for start := 0; start < len(ids); start += originsChunk {
		chunk := ids[start:min(start+originsChunk, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = point.NormalizeID(id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")

		rows, err := s.rdb.QueryContext(ctx,
			`SELECT DISTINCT origin_id FROM configpoints WHERE id IN (`+placeholders+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("origins of: %w", err)
		}
		origins, err := collectStrings(rows, "origins of")
		if err != nil {
			return nil, err
		}
		for _, o := range origins {
			seen[o] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for o := range seen {
		out = append(out, o)
	}
	slices.Sort(out)
	return out, nil
}

// MaxInterface returns the highest interface with any stored point, or 0
// for an empty store.
func (s *Store) MaxInterface(ctx context.Context) (int, error) {
	n, err := queryAggregate(ctx, s.rdb, point.MaxOf(point.ColumnInterface), point.AllPoints().WithDeactivated())
	if err != nil {
		return 0, fmt.Errorf("max interface: %w", err)
	}
	return int(n), nil
}

// InterfaceCounts summarizes the active points of every interface,
// ordered by interface.
func (s *Store) InterfaceCounts(ctx context.Context) ([]point.InterfaceCounts, error) {
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT interface,
		       COALESCE(SUM(success), 0),
		       COALESCE(SUM(1 - success), 0),
		       COALESCE(SUM(weight), 0)
		FROM configpoints
		WHERE deactivated = 0
		GROUP BY interface
		ORDER BY interface ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("interface counts: %w", err)
	}
	defer rows.Close()

	var out []point.InterfaceCounts
	for rows.Next() {
		var c point.InterfaceCounts
		if err := rows.Scan(&c.Interface, &c.Success, &c.Failed, &c.TotalWeight); err != nil {
			return nil, fmt.Errorf("interface counts: scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("interface counts: %w", err)
	}
	return out, nil
}

// Endpoints returns the active successful points that were never used,
// the current ends of every trajectory.
func (s *Store) Endpoints(ctx context.Context) ([]point.Point, error) {
	if err := s.flushIfPending(ctx); err != nil {
		return nil, err
	}
	rows, err := s.rdb.QueryContext(ctx, `
		SELECT `+pointColumns+` FROM configpoints
		WHERE deactivated = 0 AND success = 1 AND usecount = 0
		ORDER BY seq ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("endpoints: %w", err)
	}
	return collectPoints(rows, "endpoints")
}
