package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/Alias1177/MilkyTarot/internal/metrics"
)

// Loop is the event loop scheduled actions are handed off to.
// Submit must not block the caller.
type Loop interface {
	Submit(task func(ctx context.Context)) error
}

// Job describes a live daily job. Hour and Minute are in the reference timezone.
type Job struct {
	UserID int64
	Hour   int
	Minute int

	entryID cron.EntryID
	seq     uint64
}

// Clock returns the reference fire time as "HH:MM".
func (j Job) Clock() string {
	return FormatClock(j.Hour, j.Minute)
}

// Registry keeps at most one daily job per user on top of a cron runner.
// Scheduling calls may come from any goroutine.
type Registry struct {
	mu      sync.Mutex
	cron    *cron.Cron
	jobs    map[int64]Job
	seq     uint64
	started bool

	loopMu sync.RWMutex
	loop   Loop

	loc *time.Location
	log zerolog.Logger
}

// New creates a registry whose jobs fire in loc.
func New(loc *time.Location, logger zerolog.Logger) *Registry {
	if loc == nil {
		loc = time.Local
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: logger}

	return &Registry{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		),
		jobs: make(map[int64]Job),
		loc:  loc,
		log:  logger,
	}
}

// Location returns the reference timezone.
func (r *Registry) Location() *time.Location {
	return r.loc
}

// Configure sets the event loop used for asynchronous actions.
func (r *Registry) Configure(loop Loop) {
	r.loopMu.Lock()
	r.loop = loop
	r.loopMu.Unlock()
	r.log.Debug().Msg("event loop configured")
}

func (r *Registry) eventLoop() Loop {
	r.loopMu.RLock()
	defer r.loopMu.RUnlock()
	return r.loop
}

// Start begins firing jobs. Calling it again is a no-op.
func (r *Registry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.cron.Start()
	r.started = true
	r.log.Info().Int("jobs", len(r.jobs)).Str("tz", r.loc.String()).Msg("scheduler started")
}

// Shutdown stops firing jobs without waiting for running ones.
// Calling it again is a no-op.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		return
	}
	r.cron.Stop()
	r.started = false
	r.log.Info().Msg("scheduler stopped")
}

// ScheduleDaily replaces the user's job with one firing every day at clock,
// given in the reference timezone. Invalid input is logged and ignored.
func (r *Registry) ScheduleDaily(userID int64, clock string, action Action) bool {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("daily job not scheduled")
		return false
	}
	return r.schedule(userID, hour, minute, action)
}

// ScheduleDailyWithOffset is ScheduleDaily for a user-local clock that is
// offsetHours ahead of the reference timezone.
func (r *Registry) ScheduleDailyWithOffset(userID int64, clock string, offsetHours int, action Action) bool {
	hour, minute, err := Translate(clock, offsetHours)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Int("offset", offsetHours).Msg("daily job not scheduled")
		return false
	}
	return r.schedule(userID, hour, minute, action)
}

func (r *Registry) schedule(userID int64, hour, minute int, action Action) bool {
	spec := fmt.Sprintf("%d %d * * *", minute, hour)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.jobs[userID]; ok {
		r.cron.Remove(old.entryID)
		delete(r.jobs, userID)
	}

	r.seq++
	seq := r.seq
	entryID, err := r.cron.AddFunc(spec, func() { r.fire(userID, seq, action) })
	if err != nil {
		metrics.SetScheduledJobs(len(r.jobs))
		r.log.Error().Err(err).Int64("user_id", userID).Str("spec", spec).Msg("failed to add daily job")
		return false
	}

	r.jobs[userID] = Job{UserID: userID, Hour: hour, Minute: minute, entryID: entryID, seq: seq}
	metrics.SetScheduledJobs(len(r.jobs))
	r.log.Info().Int64("user_id", userID).Str("at", FormatClock(hour, minute)).Msg("daily job scheduled")
	return true
}

// Remove deletes the user's job. Removing a missing job is a no-op.
func (r *Registry) Remove(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[userID]
	if !ok {
		return
	}
	r.cron.Remove(job.entryID)
	delete(r.jobs, userID)
	metrics.SetScheduledJobs(len(r.jobs))
	r.log.Info().Int64("user_id", userID).Msg("daily job removed")
}

// HasJob reports whether the user has a live job.
func (r *Registry) HasJob(userID int64) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Lookup returns the user's live job.
func (r *Registry) Lookup(userID int64) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID]
	return job, ok
}

// Next returns the next fire time of the user's job. It is zero until the registry is started.
func (r *Registry) Next(userID int64) time.Time {
	job, ok := r.Lookup(userID)
	if !ok {
		return time.Time{}
	}
	return r.cron.Entry(job.entryID).Next
}

// Len returns the number of live jobs.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// current reports whether seq is still the user's live job.
func (r *Registry) current(userID int64, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[userID]
	return ok && job.seq == seq
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
