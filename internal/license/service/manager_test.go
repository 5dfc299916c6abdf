package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"github.com/smallbiznis/assessly/internal/license/domain"
	"github.com/smallbiznis/assessly/internal/license/repository"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/smallbiznis/assessly/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newManager(t *testing.T) (*Manager, *testutil.Env) {
	t.Helper()
	env := testutil.New(t)
	m := New(Params{
		DB:      env.DB,
		Log:     zap.NewNop(),
		GenID:   env.Node,
		Clock:   env.Clock,
		Repo:    repository.Provide(),
		Retry:   db.RetryConfig{Attempts: 3, Delay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Timeout: 5 * time.Second},
		Metrics: metrics.NewLifecycleMetrics(prometheus.NewRegistry(), metrics.Config{}),
	})
	return m.(*Manager), env
}

func seedCompany(t *testing.T, env *testutil.Env, seats int) snowflake.ID {
	t.Helper()
	company, err := companydomain.NewCompany(env.Node.Generate(), "Acme", seats, 0, env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.DB.Create(company).Error)
	return company.ID
}

func usage(t *testing.T, m *Manager, companyID snowflake.ID) domain.Usage {
	t.Helper()
	u, err := m.Usage(context.Background(), companyID)
	require.NoError(t, err)
	return u
}

func TestTryReserveSeatUntilExhausted(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 2)

	for i := 0; i < 2; i++ {
		res, err := m.TryReserveSeat(ctx, companyID)
		require.NoError(t, err)
		assert.Equal(t, domain.ReservationHeld, res.Status)
	}

	_, err := m.TryReserveSeat(ctx, companyID)
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	u := usage(t, m, companyID)
	assert.Equal(t, 2, u.UsedLicensesCount)
	assert.Equal(t, 0, u.Available)
}

func TestTryReserveSeatUnknownCompany(t *testing.T) {
	m, _ := newManager(t)
	_, err := m.TryReserveSeat(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)

	_, err = m.Usage(context.Background(), 12345)
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
}

func TestTryReserveSeatConcurrentNeverOversells(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 3)

	const callers = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		reserved int
		exceeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.TryReserveSeat(ctx, companyID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				reserved++
			case errors.Is(err, domain.ErrQuotaExceeded):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 3, reserved)
	assert.Equal(t, callers-3, exceeded)
	assert.Equal(t, 3, usage(t, m, companyID).UsedLicensesCount)
}

func TestReleaseIsIdempotent(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 1)

	res, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)

	require.NoError(t, m.Release(ctx, res.ID))
	require.NoError(t, m.Release(ctx, res.ID))
	assert.Equal(t, 0, usage(t, m, companyID).UsedLicensesCount)

	_, err = m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)

	err = m.Release(ctx, 999)
	assert.ErrorIs(t, err, domain.ErrReservationNotFound)
}

func TestConsumeThenReleaseKeepsSeat(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 1)

	res, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)

	inviteID := env.Node.Generate()
	require.NoError(t, env.DB.Transaction(func(tx *gorm.DB) error {
		return m.Consume(ctx, tx, res.ID, inviteID)
	}))

	err = env.DB.Transaction(func(tx *gorm.DB) error {
		return m.Consume(ctx, tx, res.ID, inviteID)
	})
	assert.ErrorIs(t, err, domain.ErrReservationNotHeld)

	err = m.Release(ctx, res.ID)
	assert.ErrorIs(t, err, domain.ErrReservationConsumed)
	assert.Equal(t, 1, usage(t, m, companyID).UsedLicensesCount)
}

func TestReleaseStaleReturnsAbandonedSeats(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 3)

	abandoned, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)
	consumed, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)
	require.NoError(t, env.DB.Transaction(func(tx *gorm.DB) error {
		return m.Consume(ctx, tx, consumed.ID, env.Node.Generate())
	}))

	env.Clock.Advance(time.Hour)
	fresh, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)

	released, err := m.ReleaseStale(ctx, env.Clock.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	got, err := m.repo.FindReservation(ctx, env.DB, abandoned.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationReleased, got.Status)

	got, err = m.repo.FindReservation(ctx, env.DB, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ReservationHeld, got.Status)
	assert.Equal(t, 2, usage(t, m, companyID).UsedLicensesCount)
}

func TestReconcileAfterAmbiguousCommit(t *testing.T) {
	m, env := newManager(t)
	ctx := context.Background()
	companyID := seedCompany(t, env, 2)
	cause := &timeoutErr{}

	committed, err := m.TryReserveSeat(ctx, companyID)
	require.NoError(t, err)

	recovered, err := m.reconcile(ctx, committed, cause)
	require.NoError(t, err)
	assert.Equal(t, committed.ID, recovered.ID)

	lost := &domain.Reservation{ID: env.Node.Generate(), CompanyID: companyID}
	_, err = m.reconcile(ctx, lost, cause)
	assert.ErrorIs(t, err, db.ErrUnavailable)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "context deadline exceeded" }
