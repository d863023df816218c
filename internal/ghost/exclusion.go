package ghost

import (
	"context"
	"fmt"
)

// IdleSource answers idle-descendant questions against the ghost store.
// *store.Store implements IdleSource.
type IdleSource interface {
	CountIdleChildren(ctx context.Context, origin string) (int64, error)
	IdleOrigins(ctx context.Context, iface int) ([]string, error)
}

// ExclusionCache is a negative cache of origins known to have no idle
// ghost children. It is never refreshed on its own; call Rebuild when the
// interface changes.
type ExclusionCache struct {
	ghosts   IdleSource
	inFlight InFlight

	iface     int
	exhausted map[string]struct{}
}

// NewExclusionCache creates an empty cache.
func NewExclusionCache(ghosts IdleSource, inFlight InFlight) *ExclusionCache {
	return &ExclusionCache{
		ghosts:    ghosts,
		inFlight:  inFlight,
		iface:     -1,
		exhausted: make(map[string]struct{}),
	}
}

// OriginHasIdleChild reports whether origin has an active, unused ghost
// child. A negative answer is remembered only while no ghost run is in
// flight, since a running ghost may still add a child.
func (c *ExclusionCache) OriginHasIdleChild(ctx context.Context, origin string) (bool, error) {
	if _, ok := c.exhausted[origin]; ok {
		return false, nil
	}
	n, err := c.ghosts.CountIdleChildren(ctx, origin)
	if err != nil {
		return false, fmt.Errorf("origin has idle child: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	if c.inFlight.Len() == 0 {
		c.exhausted[origin] = struct{}{}
	}
	return false, nil
}

// Rebuild replaces the cache for iface with the candidates that have no idle
// ghost child. It returns those exhausted origins in candidate order.
func (c *ExclusionCache) Rebuild(ctx context.Context, iface int, candidateIDs []string) ([]string, error) {
	idle, err := c.ghosts.IdleOrigins(ctx, iface)
	if err != nil {
		return nil, fmt.Errorf("rebuild exclusion cache: %w", err)
	}
	hasIdle := make(map[string]struct{}, len(idle))
	for _, id := range idle {
		hasIdle[id] = struct{}{}
	}

	c.iface = iface
	c.exhausted = make(map[string]struct{})
	var out []string
	for _, id := range candidateIDs {
		if _, ok := hasIdle[id]; ok {
			continue
		}
		if _, dup := c.exhausted[id]; dup {
			continue
		}
		c.exhausted[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

// Interface returns the interface of the last Rebuild, or -1.
func (c *ExclusionCache) Interface() int {
	return c.iface
}

// Len returns the number of origins known to be exhausted.
func (c *ExclusionCache) Len() int {
	return len(c.exhausted)
}
