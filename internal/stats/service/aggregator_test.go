package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/invite/token"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	projectrepo "github.com/smallbiznis/assessly/internal/project/repository"
	"github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/smallbiznis/assessly/internal/stats/repository"
	"github.com/smallbiznis/assessly/internal/stats/service"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type fixture struct {
	env     *testutil.Env
	agg     domain.Aggregator
	company *companydomain.Company
	project *projectdomain.Project
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.New(t)

	company, err := companydomain.NewCompany(env.Node.Generate(), "Acme", 10, 0, env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.DB.Create(company).Error)

	project, err := projectdomain.NewProject(env.Node.Generate(), company.ID, "Backend", "", env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.DB.Create(project).Error)

	agg := service.New(service.Params{
		DB:          env.DB,
		Log:         zap.NewNop(),
		Clock:       env.Clock,
		Repo:        repository.Provide(),
		ProjectRepo: projectrepo.Provide(),
	})
	return &fixture{env: env, agg: agg, company: company, project: project}
}

func (f *fixture) invite(t *testing.T, email string) invitedomain.Invite {
	t.Helper()
	raw, err := token.Generate()
	require.NoError(t, err)
	inv, err := invitedomain.NewInvite(f.env.Node.Generate(), f.company.ID, f.project.ID, email, token.Hash(raw), f.env.Clock.Now(), 7*24*time.Hour)
	require.NoError(t, err)
	return *inv
}

func (f *fixture) stats(t *testing.T) projectdomain.Stats {
	t.Helper()
	var project projectdomain.Project
	require.NoError(t, f.env.DB.First(&project, "id = ?", f.project.ID).Error)
	return project.Stats
}

func advance(inv invitedomain.Invite, to invitedomain.Status, at time.Time) invitedomain.Invite {
	return inv.Apply(invitedomain.Transition{To: to, At: at})
}

func TestOnInviteCreatedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")

	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	assert.Equal(t, projectdomain.Stats{Invited: 1}, f.stats(t))
	assert.EqualValues(t, 1, f.env.CountRows(t, "project_candidates", "invite_id = ?", inv.ID))
}

func TestOnInviteTransitionCountsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	started := advance(inv, invitedomain.StatusStarted, f.env.Clock.Now())
	applied, err := f.agg.OnInviteTransition(ctx, started, invitedomain.StatusPending, invitedomain.StatusStarted)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = f.agg.OnInviteTransition(ctx, started, invitedomain.StatusPending, invitedomain.StatusStarted)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, projectdomain.Stats{Invited: 1, InProgress: 1}, f.stats(t))

	completed := advance(started, invitedomain.StatusCompleted, f.env.Clock.Now())
	_, err = f.agg.OnInviteTransition(ctx, completed, invitedomain.StatusStarted, invitedomain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, projectdomain.Stats{Invited: 1, InProgress: 0, Completed: 1}, f.stats(t))

	candidates, err := f.agg.GetProjectCandidates(ctx, f.company.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, invitedomain.StatusCompleted, candidates[0].Status)
	require.NotNil(t, candidates[0].DateStarted)
	require.NotNil(t, candidates[0].DateCompleted)
}

func TestCountersNeverGoNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	expired := advance(inv, invitedomain.StatusExpired, f.env.Clock.Now())
	_, err := f.agg.OnInviteTransition(ctx, expired, invitedomain.StatusStarted, invitedomain.StatusExpired)
	require.NoError(t, err)

	assert.Equal(t, projectdomain.Stats{Invited: 1}, f.stats(t))
}

func TestRecordResultStoresSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	scores := map[string]float64{"communication": 4, "problem_solving": 2, "ownership": 3}
	require.NoError(t, f.agg.RecordResult(ctx, inv.ID, scores, datatypes.JSON(`{"q1":"a"}`)))

	candidates, err := f.agg.GetProjectCandidates(ctx, f.company.ID, f.project.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	got := candidates[0]
	require.NotNil(t, got.ScoreSummary)
	assert.InDelta(t, 3.0, got.ScoreSummary.Average, 1e-9)
	assert.Equal(t, 2.0, got.ScoreSummary.Min)
	assert.Equal(t, 4.0, got.ScoreSummary.Max)
	assert.Equal(t, 3, got.ScoreSummary.Count)
	assert.Equal(t, scores, got.Scores)
	assert.JSONEq(t, `{"q1":"a"}`, string(got.RawAnswers))

	err = f.agg.RecordResult(ctx, 42, scores, nil)
	assert.ErrorIs(t, err, domain.ErrCandidateNotFound)
}

func TestTouchOpenedIsLastWriteWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	later := f.env.Clock.Now().Add(time.Hour)
	require.NoError(t, f.agg.TouchOpened(ctx, inv.ID, later))

	candidates, err := f.agg.GetProjectCandidates(ctx, f.company.ID, f.project.ID)
	require.NoError(t, err)
	require.NotNil(t, candidates[0].LastOpenedAt)
	assert.True(t, candidates[0].LastOpenedAt.Equal(later))
	assert.Nil(t, candidates[0].ScoreSummary)
}

func TestGetProjectCandidatesScopedToCompany(t *testing.T) {
	f := newFixture(t)
	_, err := f.agg.GetProjectCandidates(context.Background(), f.company.ID+1, f.project.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestGetCandidateScopedToCompany(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv := f.invite(t, "a@example.com")
	require.NoError(t, f.agg.OnInviteCreated(ctx, inv))

	got, err := f.agg.GetCandidate(ctx, f.company.ID, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", got.Email)
	assert.Equal(t, invitedomain.StatusPending, got.Status)

	tests := []struct {
		name      string
		companyID snowflake.ID
		inviteID  snowflake.ID
	}{
		{name: "other company", companyID: f.company.ID + 1, inviteID: inv.ID},
		{name: "unknown invite", companyID: f.company.ID, inviteID: inv.ID + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.agg.GetCandidate(ctx, tt.companyID, tt.inviteID)
			assert.ErrorIs(t, err, domain.ErrCandidateNotFound)
		})
	}
}
