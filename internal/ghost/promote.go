package ghost

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/ffspoints/internal/point"
)

// GhostLines is the ghost-store side of a promotion.
type GhostLines interface {
	IdleChild(ctx context.Context, origin string) (point.Point, bool, error)
	DeleteOrigin(ctx context.Context, p point.Point) (bool, error)
}

// RealWriter is the real-store side of a promotion.
type RealWriter interface {
	AddPoint(ctx context.Context, p point.Point) (point.Point, error)
	QueueUseCount(id string)
}

// Promote turns a finished ghost run into a real trial. When the real
// scheduler chooses origin, the oldest idle ghost child of origin is copied
// into the real store, the origin's usecount is queued there, and the ghost
// line is removed. Returns false when origin has no idle ghost child.
func Promote(ctx context.Context, ghosts GhostLines, realStore RealWriter, origin string) (point.Point, bool, error) {
	g, ok, err := ghosts.IdleChild(ctx, origin)
	if err != nil {
		return point.Point{}, false, fmt.Errorf("promote: %w", err)
	}
	if !ok {
		return point.Point{}, false, nil
	}

	copied := g
	copied.Seq = 0
	copied.UseCount = 0
	copied.Deactivated = false
	stored, err := realStore.AddPoint(ctx, copied)
	if err != nil {
		return point.Point{}, false, fmt.Errorf("promote %q: %w", g.ID, err)
	}
	realStore.QueueUseCount(origin)

	deleted, err := ghosts.DeleteOrigin(ctx, g)
	if err != nil {
		return point.Point{}, false, fmt.Errorf("promote %q: remove ghost line: %w", g.ID, err)
	}
	if !deleted {
		slog.Warn("ghost line changed before removal", "point_id", g.ID, "origin_id", origin)
	}

	slog.Debug("ghost promoted", "point_id", stored.ID, "origin_id", origin)
	return stored, true, nil
}
