package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	eventsdomain "github.com/smallbiznis/assessly/internal/events/domain"
	eventsservice "github.com/smallbiznis/assessly/internal/events/service"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/testutil/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	fail bool
	seen []string
}

func (s *recordingSink) Deliver(_ context.Context, event eventsdomain.Event) error {
	if s.fail {
		return errors.New("sink down")
	}
	s.seen = append(s.seen, event.ID)
	return nil
}

func newScheduler(t *testing.T, s *lifecycle.Stack, sink *recordingSink, cfg Config) *Scheduler {
	t.Helper()
	var relay *eventsservice.Relay
	if sink != nil {
		relay = eventsservice.NewRelayWithSink(s.Events, sink, s.Clock, 2, zap.NewNop())
	}
	sched, err := New(Params{
		Log:      zap.NewNop(),
		GenID:    s.Node,
		Clock:    s.Clock,
		Invites:  s.Invites,
		Licenses: s.Licenses,
		Relay:    relay,
		Config:   cfg,
	})
	require.NoError(t, err)
	return sched
}

func createInvites(t *testing.T, s *lifecycle.Stack, seats, n int) []invitedomain.CreateInviteResponse {
	t.Helper()
	company := s.SeedCompany(t, seats)
	project := s.SeedProject(t, company.ID, "Platform")
	out := make([]invitedomain.CreateInviteResponse, 0, n)
	for i := 0; i < n; i++ {
		created, err := s.Invites.CreateInvite(context.Background(), invitedomain.CreateInviteRequest{
			CompanyID:      company.ID,
			ProjectID:      project.ID,
			CandidateEmail: fmt.Sprintf("candidate%d@example.com", i),
		})
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfigDefaultsAndJobFilter(t *testing.T) {
	cfg := Config{EnabledJobs: []string{" Expire_Invites "}}.withDefaults()
	assert.Equal(t, DefaultConfig().RunInterval, cfg.RunInterval)
	assert.Equal(t, DefaultConfig().BatchSize, cfg.BatchSize)
	assert.True(t, cfg.isJobEnabled(JobExpireInvites))
	assert.False(t, cfg.isJobEnabled(JobRelayLifecycleEvents))
	assert.True(t, Config{}.isJobEnabled(JobRelayLifecycleEvents))
}

func TestRunOnceExpiresOverdueInvitesAcrossBatches(t *testing.T) {
	s := lifecycle.New(t)
	createInvites(t, s, 10, 5)
	sched := newScheduler(t, s, nil, Config{BatchSize: 2})

	s.Clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))

	assert.EqualValues(t, 5, s.CountRows(t, "invites", "status = ?", invitedomain.StatusExpired))
	assert.EqualValues(t, 5, s.CountRows(t, "invites", "expired_at IS NOT NULL"))
	assert.EqualValues(t, 5, s.CountRows(t, "lifecycle_events", "type = ?", "invite.expired"))
}

func TestRunOnceLeavesInvitesBeforeDeadline(t *testing.T) {
	s := lifecycle.New(t)
	createInvites(t, s, 10, 2)
	sched := newScheduler(t, s, nil, Config{})

	s.Clock.Advance(6 * 24 * time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))

	assert.EqualValues(t, 2, s.CountRows(t, "invites", "status = ?", invitedomain.StatusPending))
}

func TestRunOnceReleasesStaleReservations(t *testing.T) {
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 3)
	_, err := s.Licenses.TryReserveSeat(context.Background(), company.ID)
	require.NoError(t, err)
	require.Equal(t, 1, s.UsedLicenses(t, company.ID))

	sched := newScheduler(t, s, nil, Config{ReservationStaleAge: 10 * time.Minute})

	s.Clock.Advance(5 * time.Minute)
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 1, s.UsedLicenses(t, company.ID))

	s.Clock.Advance(10 * time.Minute)
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Equal(t, 0, s.UsedLicenses(t, company.ID))
}

func TestEnabledJobsRestrictsRun(t *testing.T) {
	s := lifecycle.New(t)
	createInvites(t, s, 10, 1)
	sink := &recordingSink{}
	sched := newScheduler(t, s, sink, Config{EnabledJobs: []string{JobRelayLifecycleEvents}})

	s.Clock.Advance(8 * 24 * time.Hour)
	require.NoError(t, sched.RunOnce(context.Background()))

	assert.EqualValues(t, 1, s.CountRows(t, "invites", "status = ?", invitedomain.StatusPending))
	assert.Len(t, sink.seen, 1)
}

func TestRelayDrainsOutboxInBatches(t *testing.T) {
	s := lifecycle.New(t)
	createInvites(t, s, 10, 5)
	sink := &recordingSink{}
	sched := newScheduler(t, s, sink, Config{EnabledJobs: []string{JobRelayLifecycleEvents}})

	require.NoError(t, sched.RunOnce(context.Background()))

	assert.Len(t, sink.seen, 5)
	assert.EqualValues(t, 0, s.CountRows(t, "lifecycle_events", "published_at IS NULL"))
}

func TestRelayFailureIsReported(t *testing.T) {
	s := lifecycle.New(t)
	createInvites(t, s, 10, 1)
	sink := &recordingSink{fail: true}
	sched := newScheduler(t, s, sink, Config{EnabledJobs: []string{JobRelayLifecycleEvents}})

	err := sched.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), JobRelayLifecycleEvents)
	assert.EqualValues(t, 1, s.CountRows(t, "lifecycle_events", "published_at IS NULL"))

	sink.fail = false
	require.NoError(t, sched.RunOnce(context.Background()))
	assert.Len(t, sink.seen, 1)
}

func TestCanceledRunIsSoftTimeout(t *testing.T) {
	s := lifecycle.New(t)
	sched := newScheduler(t, s, nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, sched.RunOnce(ctx))
}
