package gameserver

import (
	"context"
	"sort"
	"sync"
	"time"
)

// TickFunc is one shard's periodic work, invoked with the tick time.
type TickFunc func(ctx context.Context, now time.Time)

// ShardTickManager runs a periodic tick for each registered shard. Callbacks
// run sequentially, in shard ID order, on the manager's goroutine.
//
// Invariant: all callbacks are invoked at most once per tick interval.
type ShardTickManager struct {
	interval time.Duration
	clock    func() time.Time
	mu       sync.Mutex
	ticks    map[string]TickFunc
}

// NewShardTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0.
func NewShardTickManager(interval time.Duration) *ShardTickManager {
	if interval <= 0 {
		panic("gameserver.NewShardTickManager: interval must be > 0")
	}
	return &ShardTickManager{
		interval: interval,
		clock:    time.Now,
		ticks:    make(map[string]TickFunc),
	}
}

// Interval returns the tick period.
func (z *ShardTickManager) Interval() time.Duration { return z.interval }

// RegisterTick registers a callback for shardID. Replaces any existing callback.
func (z *ShardTickManager) RegisterTick(shardID string, fn TickFunc) {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.ticks[shardID] = fn
}

// Unregister removes the tick callback for shardID.
func (z *ShardTickManager) Unregister(shardID string) {
	z.mu.Lock()
	defer z.mu.Unlock()
	delete(z.ticks, shardID)
}

// TickOnce invokes every registered callback once with now.
func (z *ShardTickManager) TickOnce(ctx context.Context, now time.Time) {
	z.mu.Lock()
	ids := make([]string, 0, len(z.ticks))
	callbacks := make(map[string]TickFunc, len(z.ticks))
	for k, v := range z.ticks {
		ids = append(ids, k)
		callbacks[k] = v
	}
	z.mu.Unlock()
	sort.Strings(ids)
	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}
		callbacks[id](ctx, now)
	}
}

// Start begins the tick loop on a new goroutine. It runs until ctx is cancelled.
//
// Postcondition: all registered tick callbacks are invoked once per interval.
func (z *ShardTickManager) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(z.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				z.TickOnce(ctx, z.clock())
			}
		}
	}()
}
