package dedup

import (
	"context"
	"encoding/json"
	"fmt"
)

// DefaultCapacity is the number of recent signatures retained.
const DefaultCapacity = 20

// Store keeps a bounded FIFO of recent signatures and their cached responses.
type Store interface {
	// Track records sig if it is not already present and evicts the oldest
	// entries beyond capacity. When sig was already present it reports seen
	// along with the cached response, which is nil until Record is called.
	Track(ctx context.Context, sig string) (seen bool, cached json.RawMessage, err error)
	// Record caches the response for a tracked signature.
	Record(ctx context.Context, sig string, response json.RawMessage) error
	// Forget drops a signature so the next identical call runs again.
	Forget(ctx context.Context, sig string) error
	// Len returns the number of tracked signatures.
	Len(ctx context.Context) (int, error)
	// Clear drops every tracked signature.
	Clear(ctx context.Context) error
}

// Stats describes how full the dedup window is.
type Stats struct {
	QueueSize   int    `json:"queue_size"`
	MaxSize     int    `json:"max_size"`
	Utilization string `json:"utilization"`
}

func newStats(size, capacity int) Stats {
	util := 0.0
	if capacity > 0 {
		util = float64(size) / float64(capacity) * 100
	}
	return Stats{QueueSize: size, MaxSize: capacity, Utilization: fmt.Sprintf("%.1f%%", util)}
}
