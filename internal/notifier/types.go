package notifier

import (
	"context"
	"time"

	"stretchbot/internal/eventbus"
)

// Config controls the notification pipeline.
type Config struct {
	Enabled       bool
	QueueSize     int
	SendTimeout   time.Duration
	LogTicksEvery time.Duration // 0 disables tick logging
}

// Sink delivers engine events somewhere outside the process.
// Handle is called from a single goroutine, in publish order.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev eventbus.Event) error
}

// Stats are best-effort delivery counters.
type Stats struct {
	Delivered uint64 `json:"delivered"`
	Failed    uint64 `json:"failed"`
}
