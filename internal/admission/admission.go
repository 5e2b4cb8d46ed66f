package admission

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"marquee/internal/orders/txn"
)

// Counter atomically increments a key and attaches ttl to it, returning the
// post-increment value.
type Counter interface {
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Gate rejects transaction starts once a scope has seen maxCountPerUnit starts
// within the current time window.
type Gate struct {
	counter Counter
	prefix  string
	unit    time.Duration
	now     func() time.Time
}

// NewGate constructs a Gate counting in windows of unit, truncated to whole
// seconds. A zero unit means one minute.
func NewGate(counter Counter, prefix string, unit time.Duration) *Gate {
	unit = unit.Truncate(time.Second)
	if unit <= 0 {
		unit = time.Minute
	}
	return &Gate{counter: counter, prefix: prefix, unit: unit, now: time.Now}
}

// Key returns the counter key of scope for the window containing at.
func (g *Gate) Key(scope string, at time.Time) string {
	window := at.Unix() / int64(g.unit/time.Second)
	return g.prefix + scope + ":" + strconv.FormatInt(window, 10)
}

// Admit counts one start in scope. The count is kept even when the start is
// rejected, so a burst cannot slip through by retrying.
func (g *Gate) Admit(ctx context.Context, scope string, maxCountPerUnit int64) (int64, error) {
	if scope == "" {
		return 0, fmt.Errorf("%w: admission scope", txn.ErrArgumentNull)
	}
	count, err := g.counter.Incr(ctx, g.Key(scope, g.now()), g.unit)
	if err != nil {
		return 0, fmt.Errorf("admission counter: %w", err)
	}
	if count > maxCountPerUnit {
		return count, fmt.Errorf("%w: %s exceeded %d starts per %s", txn.ErrServiceUnavailable, scope, maxCountPerUnit, g.unit)
	}
	return count, nil
}
