// Package notice keeps the short user-visible messages the tracker and the
// host commands raise, for the dashboard and the CLI to show.
package notice

import (
	"context"
	"sync"
	"time"

	"cdr.dev/slog/v3"
	"github.com/coder/quartz"
	"github.com/google/uuid"
)

// DefaultCapacity is how many notices a feed retains.
const DefaultCapacity = 50

// Notice is a single message shown to the user.
type Notice struct {
	ID      string    `json:"id"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Feed is a bounded, newest-first list of notices. It implements
// activity.Notifier.
type Feed struct {
	clock  quartz.Clock
	logger slog.Logger

	mu       sync.Mutex
	ring     []Notice
	next     int
	full     bool
	listener func(Notice)
}

// NewFeed creates a feed that keeps the last capacity notices.
func NewFeed(logger slog.Logger, clock quartz.Clock, capacity int) *Feed {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Feed{
		clock:  clock,
		logger: logger,
		ring:   make([]Notice, capacity),
	}
}

// OnNotice registers fn to be called with every new notice. fn runs on the
// notifying goroutine and must not block.
func (f *Feed) OnNotice(fn func(Notice)) {
	f.mu.Lock()
	f.listener = fn
	f.mu.Unlock()
}

// Notify records msg and returns immediately.
func (f *Feed) Notify(ctx context.Context, msg string) {
	_ = f.Add(ctx, msg)
}

// Add records msg and returns the stored notice.
func (f *Feed) Add(ctx context.Context, msg string) Notice {
	n := Notice{
		ID:      uuid.NewString(),
		Message: msg,
		Time:    f.clock.Now(),
	}

	f.mu.Lock()
	f.ring[f.next] = n
	f.next = (f.next + 1) % len(f.ring)
	if f.next == 0 {
		f.full = true
	}
	listener := f.listener
	f.mu.Unlock()

	f.logger.Info(ctx, "notice", slog.F("id", n.ID), slog.F("message", msg))
	if listener != nil {
		listener(n)
	}
	return n
}

// Recent returns up to limit notices, newest first. A limit <= 0 returns all
// retained notices.
func (f *Feed) Recent(limit int) []Notice {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := f.next
	if f.full {
		count = len(f.ring)
	}
	if limit <= 0 || limit > count {
		limit = count
	}
	out := make([]Notice, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (f.next - i + len(f.ring)) % len(f.ring)
		out = append(out, f.ring[idx])
	}
	return out
}
