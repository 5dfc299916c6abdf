package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/analytics/domain"
	"github.com/smallbiznis/assessly/internal/analytics/service"
	"github.com/smallbiznis/assessly/internal/config"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/smallbiznis/assessly/internal/testutil/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type failingStats struct {
	statsdomain.Aggregator
	fail snowflake.ID
}

func (f failingStats) GetProjectCandidates(ctx context.Context, companyID, projectID snowflake.ID) ([]statsdomain.Candidate, error) {
	if projectID == f.fail {
		return nil, errors.New("boom")
	}
	return f.Aggregator.GetProjectCandidates(ctx, companyID, projectID)
}

type world struct {
	*lifecycle.Stack
	companyID snowflake.ID
	backend   *projectdomain.Project
	design    *projectdomain.Project
	empty     *projectdomain.Project
}

func (w *world) invite(t *testing.T, project *projectdomain.Project) string {
	t.Helper()
	created, err := w.Invites.CreateInvite(context.Background(), invitedomain.CreateInviteRequest{
		CompanyID: w.companyID, ProjectID: project.ID, CandidateEmail: "c@x.com",
	})
	require.NoError(t, err)
	return created.Token
}

func (w *world) complete(t *testing.T, raw string) {
	t.Helper()
	_, err := w.Invites.Open(context.Background(), raw)
	require.NoError(t, err)

	invites, err := w.InviteRepo.ListDue(context.Background(), w.DB, w.Clock.Now().Add(365*24*time.Hour), 100)
	require.NoError(t, err)
	for i := range invites {
		if invites[i].Status != invitedomain.StatusStarted {
			continue
		}
		resultID := w.Node.Generate()
		err := w.DB.Transaction(func(tx *gorm.DB) error {
			_, _, err := w.Machine.Transition(context.Background(), tx, &invites[i], invitedomain.Transition{
				To: invitedomain.StatusCompleted, At: w.Clock.Now(), ResultID: &resultID,
			})
			return err
		})
		require.NoError(t, err)
	}
}

// newWorld builds backend (2 completed, 1 pending), design (1 completed, 1 started) and an
// empty project.
func newWorld(t *testing.T) *world {
	t.Helper()
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 20)
	w := &world{Stack: s, companyID: company.ID}
	w.backend = s.SeedProject(t, company.ID, "Backend")
	w.design = s.SeedProject(t, company.ID, "Design")
	w.empty = s.SeedProject(t, company.ID, "Empty")

	w.complete(t, w.invite(t, w.backend))
	w.complete(t, w.invite(t, w.backend))
	w.invite(t, w.backend)
	w.complete(t, w.invite(t, w.design))
	_, err := w.Invites.Open(context.Background(), w.invite(t, w.design))
	require.NoError(t, err)
	return w
}

func (w *world) service(stats statsdomain.Aggregator) domain.Service {
	return service.New(service.Params{
		DB:          w.DB,
		Log:         zap.NewNop(),
		Clock:       w.Clock,
		ProjectRepo: w.ProjectRepo,
		Stats:       stats,
		Settings:    config.NewStaticAssessmentConfig(config.DefaultAssessmentConfig()),
	})
}

func TestGetAnalyticsTotalsAndRanking(t *testing.T) {
	w := newWorld(t)
	report, err := w.service(w.Stats).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID, IncludeDetail: true})
	require.NoError(t, err)

	assert.Equal(t, domain.Totals{
		Projects:              3,
		Candidates:            5,
		Pending:               1,
		InProgress:            1,
		Completed:             3,
		AverageCompletionRate: 60,
	}, report.Totals)
	assert.Len(t, report.Projects, 3)
	assert.Empty(t, report.SkippedProjects)

	require.Len(t, report.TopProjects, 2)
	assert.Equal(t, w.backend.ID, report.TopProjects[0].ProjectID)
	assert.Equal(t, 66.7, report.TopProjects[0].CompletionRate)
	assert.Equal(t, w.design.ID, report.TopProjects[1].ProjectID)
	assert.Equal(t, 50.0, report.TopProjects[1].CompletionRate)

	top1, err := w.service(w.Stats).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID, TopN: 1})
	require.NoError(t, err)
	require.Len(t, top1.TopProjects, 1)
	assert.Nil(t, top1.Projects)
}

func TestGetAnalyticsTrends(t *testing.T) {
	w := newWorld(t)
	report, err := w.service(w.Stats).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID})
	require.NoError(t, err)

	require.Len(t, report.Trends, 12)
	assert.Equal(t, "2024-04", report.Trends[0].Month)
	assert.Equal(t, domain.TrendBucket{
		Month:                "2025-03",
		ProjectsCreated:      3,
		CandidatesInvited:    5,
		AssessmentsCompleted: 3,
	}, report.Trends[11])
}

func TestGetAnalyticsFiltersCandidatesByInviteDate(t *testing.T) {
	w := newWorld(t)
	from := w.Clock.Now().Add(time.Hour)

	w.Clock.Advance(2 * time.Hour)
	w.invite(t, w.design)

	report, err := w.service(w.Stats).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID, From: &from})
	require.NoError(t, err)
	assert.Equal(t, 3, report.Totals.Projects)
	assert.Equal(t, 1, report.Totals.Candidates)
	assert.Equal(t, 1, report.Totals.Pending)
	assert.Zero(t, report.Totals.AverageCompletionRate)

	to := from.Add(-2 * time.Hour)
	_, err = w.service(w.Stats).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID, From: &from, To: &to})
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestGetAnalyticsSkipsFailingProjects(t *testing.T) {
	w := newWorld(t)
	report, err := w.service(failingStats{Aggregator: w.Stats, fail: w.design.ID}).GetAnalytics(context.Background(), domain.Request{CompanyID: w.companyID})
	require.NoError(t, err)

	assert.Equal(t, []snowflake.ID{w.design.ID}, report.SkippedProjects)
	assert.Equal(t, 3, report.Totals.Projects)
	assert.Equal(t, 3, report.Totals.Candidates)
	assert.Equal(t, 66.7, report.Totals.AverageCompletionRate)
}
