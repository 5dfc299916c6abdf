package scheduler

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ExpireInvitesJob moves overdue pending and started invites to expired, batch by batch,
// until a batch comes back short or the per-run cap is reached.
func (s *Scheduler) ExpireInvitesJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobExpireInvites, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	now := s.clock.Now()

	for batch := 0; batch < s.cfg.MaxBatchesPerRun; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		expired, err := s.invites.ExpireDue(ctx, now, s.cfg.BatchSize)
		run.AddProcessed(expired)
		s.metrics.AddBatchProcessed(JobExpireInvites, "invites", expired)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.invite.expire.failed", err)
			return err
		}
		if expired < s.cfg.BatchSize {
			return nil
		}
	}
	return nil
}

// ReleaseStaleReservationsJob returns seats held by creators that never finished.
func (s *Scheduler) ReleaseStaleReservationsJob(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobReleaseStaleReservations, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}
	heldBefore := s.clock.Now().Add(-s.cfg.ReservationStaleAge)

	for batch := 0; batch < s.cfg.MaxBatchesPerRun; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		released, err := s.licenses.ReleaseStale(ctx, heldBefore, s.cfg.BatchSize)
		run.AddProcessed(released)
		s.metrics.AddBatchProcessed(JobReleaseStaleReservations, "reservations", released)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.reservation.release.failed", err,
				zap.Time("held_before", heldBefore),
			)
			return err
		}
		if released < s.cfg.BatchSize {
			return nil
		}
	}
	return nil
}

// RelayLifecycleEventsJob drains the outbox. A delivery failure ends the run; the
// undelivered tail is picked up on the next tick.
func (s *Scheduler) RelayLifecycleEventsJob(ctx context.Context) error {
	if s.relay == nil {
		return errors.New("event relay not configured")
	}
	ctx, run, owner := s.ensureJobRun(ctx, JobRelayLifecycleEvents, s.cfg.BatchSize)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	for batch := 0; batch < s.cfg.MaxBatchesPerRun; batch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered, err := s.relay.Dispatch(ctx)
		run.AddProcessed(delivered)
		s.metrics.AddBatchProcessed(JobRelayLifecycleEvents, "events", delivered)
		if err != nil {
			s.logSchedulerError(ctx, run, "scheduler.events.relay.failed", err)
			return err
		}
		if delivered == 0 {
			return nil
		}
	}
	return nil
}
