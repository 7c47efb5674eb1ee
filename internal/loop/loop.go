// Package loop provides the bot's single event loop. Tasks submitted from
// other goroutines are queued and executed one at a time by whoever drains Tasks.
package loop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

var (
	// ErrFull is returned when the task queue is at capacity.
	ErrFull = errors.New("loop: task queue full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("loop: closed")
)

// Loop is a bounded task queue with a single consumer.
type Loop struct {
	mu     sync.RWMutex
	tasks  chan func(ctx context.Context)
	closed bool
	log    zerolog.Logger
}

// New creates a loop with room for buffer pending tasks.
func New(buffer int, logger zerolog.Logger) *Loop {
	if buffer <= 0 {
		buffer = 256
	}
	return &Loop{
		tasks: make(chan func(ctx context.Context), buffer),
		log:   logger.With().Str("component", "loop").Logger(),
	}
}

// Submit queues task without blocking.
func (l *Loop) Submit(task func(ctx context.Context)) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrClosed
	}
	select {
	case l.tasks <- task:
		return nil
	default:
		return ErrFull
	}
}

// Tasks is drained by the goroutine that owns the loop.
func (l *Loop) Tasks() <-chan func(ctx context.Context) {
	return l.tasks
}

// Exec runs a task, recovering panics.
func (l *Loop) Exec(ctx context.Context, task func(ctx context.Context)) {
	defer func() {
		if rec := recover(); rec != nil {
			l.log.Error().Err(fmt.Errorf("panic: %v", rec)).Msg("loop task panicked")
		}
	}()
	task(ctx)
}

// Run drains tasks until ctx is done. Use it when nothing else shares the loop.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-l.tasks:
			if !ok {
				return
			}
			l.Exec(ctx, task)
		}
	}
}

// Close rejects further submissions. Pending tasks are still delivered.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.tasks)
}
