package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/Alias1177/MilkyTarot/internal/metrics"
)

// ErrNotConfigured means an asynchronous action fired before Configure.
var ErrNotConfigured = errors.New("scheduler: event loop not configured")

// Func is a unit of scheduled work.
type Func func(ctx context.Context) error

// Action is what a daily job runs when it fires. Inline runs on the timer
// goroutine. Async is handed off to the configured event loop and the
// timer goroutine does not wait for it. Either may be nil.
type Action struct {
	Inline Func
	Async  Func
}

// fire is called by cron on its own goroutine.
func (r *Registry) fire(userID int64, seq uint64, action Action) {
	if !r.current(userID, seq) {
		metrics.IncJobFire("stale")
		r.log.Debug().Int64("user_id", userID).Msg("dropping fire of replaced job")
		return
	}
	r.run(userID, action)
}

// run executes the inline part in place and hands the async part to the loop.
// Nothing raised here escapes to the timer goroutine.
func (r *Registry) run(userID int64, action Action) {
	log := r.log.With().Int64("user_id", userID).Logger()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncJobFire("panic")
			log.Error().Err(fmt.Errorf("panic: %v", rec)).Msg("daily job panicked")
		}
	}()

	if action.Inline != nil {
		if err := action.Inline(context.Background()); err != nil {
			log.Error().Err(err).Msg("daily job failed")
		}
	}

	if action.Async == nil {
		return
	}

	loop := r.eventLoop()
	if loop == nil {
		metrics.IncJobFire("not_configured")
		log.Error().Err(ErrNotConfigured).Msg("daily job dropped")
		return
	}

	err := loop.Submit(func(ctx context.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Err(fmt.Errorf("panic: %v", rec)).Msg("daily job panicked on event loop")
			}
		}()
		if err := action.Async(ctx); err != nil {
			log.Error().Err(err).Msg("daily job failed on event loop")
		}
	})
	if err != nil {
		metrics.IncJobFire("rejected")
		log.Error().Err(err).Msg("event loop rejected daily job")
		return
	}
	metrics.IncJobFire("handed_off")
}

// Run executes the user's job action immediately, as if its timer had fired.
func (r *Registry) Run(userID int64, action Action) {
	r.run(userID, action)
}
