package store

import (
	"fmt"

	"github.com/roach88/ffspoints/internal/point"
)

// pointColumns is the projection scanned by scanPoint, in order.
const pointColumns = `id, seq, interface, payload, origin_id, calc_steps, ctime, runtime,
	success, run_count, seed, weight, rc_value, lambda_pos, usecount, deactivated,
	uuid, custom_data`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoint(r rowScanner) (point.Point, error) {
	var p point.Point
	err := r.Scan(
		&p.ID, &p.Seq, &p.Interface, &p.Payload, &p.OriginID,
		&p.CalcSteps, &p.CTime, &p.Runtime,
		&p.Success, &p.RunCount, &p.Seed, &p.Weight, &p.RCValue, &p.LambdaPos,
		&p.UseCount, &p.Deactivated, &p.UUID, &p.CustomData,
	)
	if err != nil {
		return point.Point{}, err
	}
	return p, nil
}

type sqlRows interface {
	rowScanner
	Next() bool
	Err() error
	Close() error
}

// collectPoints drains rows into points and closes them.
func collectPoints(rows sqlRows, op string) ([]point.Point, error) {
	defer rows.Close()

	var out []point.Point
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// collectStrings drains a single-column result set.
func collectStrings(rows sqlRows, op string) ([]string, error) {
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}
