package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	eventsservice "github.com/smallbiznis/assessly/internal/events/service"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	obsmetrics "github.com/smallbiznis/assessly/internal/observability/metrics"
	"github.com/smallbiznis/assessly/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const lockKeyPrefix = "assessly:scheduler:"

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Invites  invitedomain.Service
	Licenses licensedomain.Manager
	Relay    *eventsservice.Relay `optional:"true"`
	Locker   *ratelimit.Locker    `optional:"true"`
	Config   Config               `optional:"true"`
}

type dispatcher interface {
	Dispatch(ctx context.Context) (int, error)
}

// Scheduler runs the periodic sweeps: overdue invites, abandoned seat reservations
// and the lifecycle event outbox. Each job holds a redis lease when a Locker is
// configured so only one replica sweeps at a time.
type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	invites  invitedomain.Service
	licenses licensedomain.Manager
	relay    dispatcher
	locker   *ratelimit.Locker
	metrics  *obsmetrics.SchedulerMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Invites == nil || p.Licenses == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		invites:  p.Invites,
		licenses: p.Licenses,
		locker:   p.Locker,
		metrics:  obsmetrics.Scheduler(),
	}
	if p.Relay != nil {
		s.relay = p.Relay
	}
	return s, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	batchSize int,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name, batchSize)
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)

	ran, err := s.locker.WithLock(ctx, lockKeyPrefix+name, timeout, func(ctx context.Context) error {
		if owner {
			s.logJobStart(ctx, run)
		}
		s.metrics.IncJobRun(name)
		return fn(ctx)
	})
	if !ran && err == nil {
		s.metrics.IncBatchDeferred(name, obsmetrics.SchedulerBatchDeferredReasonLockHeld)
		log.Debug("job skipped, lease held elsewhere")
		return nil
	}
	if ran {
		s.metrics.ObserveJobDuration(name, time.Since(start))
		if owner {
			if err != nil && run.errorCount == 0 {
				run.IncError()
			}
			s.logJobFinish(ctx, run)
		}
	}
	if err == nil {
		return nil
	}

	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		s.metrics.IncJobTimeout(name)
	}
	s.metrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes every enabled job a single time and joins their errors.
func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobExpireInvites, s.ExpireInvitesJob},
		{JobReleaseStaleReservations, s.ReleaseStaleReservationsJob},
		{JobRelayLifecycleEvents, s.RelayLifecycleEventsJob},
	}

	for _, job := range jobs {
		if !s.cfg.isJobEnabled(job.Name) {
			continue
		}
		if job.Name == JobRelayLifecycleEvents && s.relay == nil {
			continue
		}
		err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.BatchSize, s.cfg.JobTimeout, job.Run))
	}

	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()
	nextRun := time.Now().Add(s.cfg.RunInterval)

	for {
		if lag := time.Since(nextRun); lag > 0 {
			s.metrics.ObserveRunLoopLag(lag)
		}
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}
		nextRun = nextRun.Add(s.cfg.RunInterval)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
