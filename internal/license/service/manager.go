package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/license/domain"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNoSeat = errors.New("no seat")

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Retry   db.RetryConfig
	Metrics *metrics.LifecycleMetrics `optional:"true"`
}

type Manager struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	retry   db.RetryConfig
	metrics *metrics.LifecycleMetrics
}

func New(p Params) domain.Manager {
	return &Manager{
		db:      p.DB,
		log:     p.Log.Named("license.manager"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		retry:   p.Retry,
		metrics: p.Metrics,
	}
}

// TryReserveSeat takes one seat and records a held reservation in the same transaction.
// An ambiguous commit is settled by reading the reservation back, never by retrying the increment.
func (m *Manager) TryReserveSeat(ctx context.Context, companyID snowflake.ID) (*domain.Reservation, error) {
	now := m.clock.Now()
	reservation := &domain.Reservation{
		ID:        m.genID.Generate(),
		CompanyID: companyID,
		Status:    domain.ReservationHeld,
		CreatedAt: now,
		UpdatedAt: now,
	}

	attemptCtx, cancel := db.WithTimeout(ctx, m.retry)
	err := m.db.WithContext(attemptCtx).Transaction(func(tx *gorm.DB) error {
		rows, err := m.repo.IncrementUsed(attemptCtx, tx, companyID, now)
		if err != nil {
			return err
		}
		if rows == 0 {
			return errNoSeat
		}
		return m.repo.InsertReservation(attemptCtx, tx, reservation)
	})
	cancel()

	switch {
	case err == nil:
		m.metrics.IncReservation(metrics.ReservationOutcomeReserved)
		return reservation, nil
	case errors.Is(err, errNoSeat):
		return nil, m.classifyNoSeat(ctx, companyID)
	case db.IsTransient(err) || errors.Is(err, context.Canceled):
		return m.reconcile(ctx, reservation, err)
	default:
		m.metrics.IncReservation(metrics.ReservationOutcomeFailed)
		return nil, fmt.Errorf("reserve seat: %w", err)
	}
}

func (m *Manager) classifyNoSeat(ctx context.Context, companyID snowflake.ID) error {
	usage, err := m.repo.FindUsage(ctx, m.db, companyID)
	if err != nil {
		return fmt.Errorf("%w: %v", db.ErrUnavailable, err)
	}
	if usage == nil {
		return domain.ErrCompanyNotFound
	}
	m.metrics.IncReservation(metrics.ReservationOutcomeExceeded)
	return domain.ErrQuotaExceeded
}

func (m *Manager) reconcile(ctx context.Context, reservation *domain.Reservation, cause error) (*domain.Reservation, error) {
	readCtx, cancel := db.WithTimeout(context.WithoutCancel(ctx), m.retry)
	defer cancel()

	found, err := m.repo.FindReservation(readCtx, m.db, reservation.ID)
	if err != nil {
		m.metrics.IncReservation(metrics.ReservationOutcomeFailed)
		m.log.Warn("reservation reconcile failed",
			zap.String("reservation_id", reservation.ID.String()),
			zap.NamedError("cause", cause),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", db.ErrUnavailable, cause)
	}
	if found == nil {
		m.metrics.IncReservation(metrics.ReservationOutcomeFailed)
		return nil, fmt.Errorf("%w: %v", db.ErrUnavailable, cause)
	}

	m.log.Info("reservation recovered after ambiguous commit",
		zap.String("reservation_id", found.ID.String()),
		zap.String("company_id", found.CompanyID.String()),
	)
	m.metrics.IncReservation(metrics.ReservationOutcomeReserved)
	return found, nil
}

// Consume ties a held reservation to the invite created inside tx.
func (m *Manager) Consume(ctx context.Context, tx *gorm.DB, reservationID, inviteID snowflake.ID) error {
	rows, err := m.repo.TransitionReservation(ctx, tx, reservationID, domain.ReservationHeld, domain.ReservationConsumed, &inviteID, m.clock.Now())
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrReservationNotHeld
	}
	return nil
}

// Release returns a held seat to the pool. Releasing an already released seat is a no-op.
func (m *Manager) Release(ctx context.Context, reservationID snowflake.ID) error {
	err := db.Retry(ctx, m.retry, func(ctx context.Context) error {
		return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			reservation, err := m.repo.FindReservation(ctx, tx, reservationID)
			if err != nil {
				return err
			}
			if reservation == nil {
				return domain.ErrReservationNotFound
			}
			switch reservation.Status {
			case domain.ReservationReleased:
				return nil
			case domain.ReservationConsumed:
				return domain.ErrReservationConsumed
			}

			now := m.clock.Now()
			rows, err := m.repo.TransitionReservation(ctx, tx, reservationID, domain.ReservationHeld, domain.ReservationReleased, nil, now)
			if err != nil {
				return err
			}
			if rows == 0 {
				return nil
			}
			if _, err := m.repo.DecrementUsed(ctx, tx, reservation.CompanyID, now); err != nil {
				return err
			}
			m.metrics.IncReservation(metrics.ReservationOutcomeReleased)
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("release reservation %s: %w", reservationID, err)
	}
	return nil
}

func (m *Manager) Usage(ctx context.Context, companyID snowflake.ID) (domain.Usage, error) {
	readCtx, cancel := db.WithTimeout(ctx, m.retry)
	defer cancel()

	usage, err := m.repo.FindUsage(readCtx, m.db, companyID)
	if err != nil {
		if db.IsTransient(err) {
			return domain.Usage{}, fmt.Errorf("%w: %v", db.ErrUnavailable, err)
		}
		return domain.Usage{}, err
	}
	if usage == nil {
		return domain.Usage{}, domain.ErrCompanyNotFound
	}
	return *usage, nil
}

// ReleaseStale returns seats whose reservation was never consumed, typically left behind
// by a creator that died between reserving and writing the invite.
func (m *Manager) ReleaseStale(ctx context.Context, heldBefore time.Time, limit int) (int, error) {
	stale, err := m.repo.ListHeldBefore(ctx, m.db, heldBefore, limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, reservation := range stale {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		if err := m.Release(ctx, reservation.ID); err != nil {
			if errors.Is(err, domain.ErrReservationConsumed) {
				continue
			}
			return released, err
		}
		released++
	}
	if released > 0 {
		m.log.Info("released stale reservations", zap.Int("count", released))
	}
	return released, nil
}
