package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/roach88/ffspoints/internal/point"
)

// whereClause renders f as a WHERE clause with positional arguments.
func whereClause(f point.Filter) (string, []any) {
	var conds []string
	var args []any

	if f.Interface != point.AllInterfaces {
		conds = append(conds, "interface = ?")
		args = append(args, f.Interface)
	}
	switch f.Success {
	case point.OnlySuccess:
		conds = append(conds, "success = 1")
	case point.OnlyFailed:
		conds = append(conds, "success = 0")
	}
	switch f.Usage {
	case point.OnlyUsed:
		conds = append(conds, "usecount >= 1")
	case point.OnlyUnused:
		conds = append(conds, "usecount = 0")
	}
	if f.OriginID != "" {
		conds = append(conds, "origin_id = ?")
		args = append(args, f.OriginID)
	}
	if !f.IncludeDeactivated {
		conds = append(conds, "deactivated = 0")
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// aggregateExpr renders agg as a SQL expression. Reductions over no rows
// yield 0 rather than NULL.
func aggregateExpr(agg point.Aggregate) (string, error) {
	if agg.Kind == point.Count {
		return "COUNT(*)", nil
	}
	if !agg.Column.Valid() {
		return "", fmt.Errorf("unknown aggregate column %q", agg.Column)
	}
	switch agg.Kind {
	case point.Sum:
		return fmt.Sprintf("COALESCE(SUM(%s), 0)", agg.Column), nil
	case point.Max:
		return fmt.Sprintf("COALESCE(MAX(%s), 0)", agg.Column), nil
	case point.Avg:
		return fmt.Sprintf("COALESCE(AVG(%s), 0)", agg.Column), nil
	default:
		return "", fmt.Errorf("unknown aggregate kind %q", agg.Kind)
	}
}

func queryAggregate(ctx context.Context, q querier, agg point.Aggregate, f point.Filter) (float64, error) {
	expr, err := aggregateExpr(agg)
	if err != nil {
		return 0, fmt.Errorf("query aggregate: %w", err)
	}
	where, args := whereClause(f)

	var v sql.NullFloat64
	if err := q.QueryRowContext(ctx, "SELECT "+expr+" FROM configpoints"+where, args...).Scan(&v); err != nil {
		return 0, fmt.Errorf("query aggregate: %w", err)
	}
	return v.Float64, nil
}

// QueryAggregate evaluates agg over the rows selected by f.
// Deactivated rows are excluded unless f.IncludeDeactivated is set.
// Aggregates that depend on usecount flush pending increments first.
func (s *Store) QueryAggregate(ctx context.Context, agg point.Aggregate, f point.Filter) (float64, error) {
	if f.Usage != point.AnyUsage || (agg.Kind != point.Count && agg.Column == point.ColumnUseCount) {
		if err := s.flushIfPending(ctx); err != nil {
			return 0, err
		}
	}
	return queryAggregate(ctx, s.rdb, agg, f)
}

// SuccessCount returns the number of active successful points at iface.
// Results are cached per interface until a successful insert, a
// deactivation or a deletion touches that interface.
func (s *Store) SuccessCount(ctx context.Context, iface int) (int64, error) {
	// Holding mu orders the cache fill against inserts, so a count read
	// before an insert cannot be cached after its invalidation.
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.successCounts.Get(iface); ok {
		return v.(int64), nil
	}
	n, err := queryAggregate(ctx, s.rdb, point.CountOf(), point.ForInterface(iface).Successful())
	if err != nil {
		return 0, fmt.Errorf("success count: %w", err)
	}
	s.successCounts.Add(iface, int64(n))
	return int64(n), nil
}

// invalidateSuccessCount drops the cached success count for iface.
func (s *Store) invalidateSuccessCount(iface int) {
	s.successCounts.Remove(iface)
}
