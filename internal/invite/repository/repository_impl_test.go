package repository_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/invite/repository"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStarted(t *testing.T, env *testutil.Env) domain.Invite {
	t.Helper()
	inv, err := domain.NewInvite(env.Node.Generate(), 1, 2, "a@example.com", strings.Repeat("a", 64), env.Clock.Now(), 7*24*time.Hour)
	require.NoError(t, err)
	started := inv.Apply(domain.Transition{To: domain.StatusStarted, At: env.Clock.Now()})
	require.NoError(t, repository.Provide().Insert(context.Background(), env.DB, &started))
	return started
}

func TestCompareAndSetKeepsNewerOpen(t *testing.T) {
	tests := []struct {
		name string
		to   domain.Status
	}{
		{name: "completed", to: domain.StatusCompleted},
		{name: "expired", to: domain.StatusExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.New(t)
			repo := repository.Provide()
			ctx := context.Background()
			snapshot := seedStarted(t, env)

			env.Clock.Advance(time.Hour)
			reopened := env.Clock.Now()
			require.NoError(t, repo.TouchOpened(ctx, env.DB, snapshot.ID, reopened))

			env.Clock.Advance(time.Minute)
			resultID := snowflake.ID(99)
			next := snapshot.Apply(domain.Transition{To: tt.to, At: env.Clock.Now(), ResultID: &resultID})
			rows, err := repo.CompareAndSet(ctx, env.DB, &next, domain.StatusStarted)
			require.NoError(t, err)
			assert.EqualValues(t, 1, rows)

			got, err := repo.FindByID(ctx, env.DB, snapshot.ID)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.to, got.Status)
			require.NotNil(t, got.LastOpenedAt)
			assert.True(t, got.LastOpenedAt.Equal(reopened), "last_opened_at = %v", got.LastOpenedAt)
			require.NotNil(t, got.StartedAt)
			assert.True(t, got.StartedAt.Equal(*snapshot.StartedAt))
		})
	}
}

func TestCompareAndSetRequiresExpectedStatus(t *testing.T) {
	env := testutil.New(t)
	repo := repository.Provide()
	ctx := context.Background()
	snapshot := seedStarted(t, env)

	next := snapshot.Apply(domain.Transition{To: domain.StatusExpired, At: env.Clock.Now()})
	rows, err := repo.CompareAndSet(ctx, env.DB, &next, domain.StatusPending)
	require.NoError(t, err)
	assert.Zero(t, rows)

	got, err := repo.FindByID(ctx, env.DB, snapshot.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, got.Status)
	assert.Nil(t, got.ExpiredAt)
}
