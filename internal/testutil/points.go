package testutil

import (
	"fmt"

	"github.com/roach88/ffspoints/internal/point"
)

// Root returns a successful interface-0 point launched from escape.
func Root(id string, steps int64) point.Point {
	return point.Point{
		ID:        id,
		OriginID:  point.Escape,
		Interface: 0,
		Payload:   "cfg-" + id,
		CalcSteps: steps,
		Success:   true,
	}
}

// Child returns a successful point one interface above parent.
func Child(parent point.Point, id string, steps int64) point.Point {
	return point.Point{
		ID:        id,
		OriginID:  parent.ID,
		Interface: parent.Interface + 1,
		Payload:   "cfg-" + id,
		CalcSteps: steps,
		Success:   true,
	}
}

// Failed returns p as a failed trial: no payload, no success.
func Failed(p point.Point) point.Point {
	p.Payload = ""
	p.Success = false
	return p
}

// Chain returns a trajectory of n successful points, one per interface,
// named prefix0 .. prefix{n-1}. Every point costs steps.
func Chain(prefix string, n int, steps int64) []point.Point {
	if n <= 0 {
		return nil
	}
	out := make([]point.Point, 0, n)
	out = append(out, Root(prefix+"0", steps))
	for i := 1; i < n; i++ {
		out = append(out, Child(out[i-1], fmt.Sprintf("%s%d", prefix, i), steps))
	}
	return out
}
