package scheduler

import (
	"context"
	"fmt"

	"github.com/Alias1177/MilkyTarot/models"
)

// ProfileLister lists the schedule settings of every stored user.
type ProfileLister interface {
	ListScheduleProfiles(ctx context.Context) ([]models.ScheduleProfile, error)
}

// RehydrateResult summarizes a rehydration run.
type RehydrateResult struct {
	Scheduled int
	Removed   int
	Failed    int
}

// Rehydrate rebuilds the job set from stored profiles. bind returns the action
// for a user id. A failing user gets no job and does not stop the others.
func (r *Registry) Rehydrate(ctx context.Context, lister ProfileLister, bind func(userID int64) Action) (RehydrateResult, error) {
	var res RehydrateResult

	profiles, err := lister.ListScheduleProfiles(ctx)
	if err != nil {
		return res, fmt.Errorf("listing schedule profiles: %w", err)
	}

	for _, p := range profiles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		switch {
		case !p.Enabled:
			r.Remove(p.UserID)
			res.Removed++
		case r.rehydrateOne(p, bind):
			res.Scheduled++
		default:
			r.Remove(p.UserID)
			res.Failed++
		}
	}

	r.log.Info().
		Int("scheduled", res.Scheduled).
		Int("removed", res.Removed).
		Int("failed", res.Failed).
		Msg("scheduler rehydrated")
	return res, nil
}

func (r *Registry) rehydrateOne(p models.ScheduleProfile, bind func(int64) Action) (ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Err(fmt.Errorf("panic: %v", rec)).Int64("user_id", p.UserID).Msg("rehydrating user")
			ok = false
		}
	}()

	action := bind(p.UserID)
	if p.TZOffset != 0 {
		return r.ScheduleDailyWithOffset(p.UserID, p.PushTime, p.TZOffset, action)
	}
	return r.ScheduleDaily(p.UserID, p.PushTime, action)
}
