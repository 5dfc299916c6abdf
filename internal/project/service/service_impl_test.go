package service_test

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	companyrepo "github.com/smallbiznis/assessly/internal/company/repository"
	"github.com/smallbiznis/assessly/internal/project/domain"
	"github.com/smallbiznis/assessly/internal/project/repository"
	"github.com/smallbiznis/assessly/internal/project/service"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setup(t *testing.T, maxProjects int) (domain.Service, snowflake.ID) {
	t.Helper()
	env := testutil.New(t)
	company, err := companydomain.NewCompany(env.Node.Generate(), "Acme", 10, maxProjects, env.Clock.Now())
	require.NoError(t, err)
	require.NoError(t, env.DB.Create(company).Error)

	svc := service.New(service.Params{
		DB:          env.DB,
		Log:         zap.NewNop(),
		GenID:       env.Node,
		Clock:       env.Clock,
		Repo:        repository.Provide(),
		CompanyRepo: companyrepo.Provide(),
	})
	return svc, company.ID
}

func TestCreateProjectEnforcesLimit(t *testing.T) {
	svc, companyID := setup(t, 2)
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateRequest{CompanyID: companyID, Name: "Backend Engineer"})
	require.NoError(t, err)
	assert.Equal(t, "backend-engineer", first.Slug)
	assert.Equal(t, domain.StatusActive, first.Status)
	assert.Zero(t, first.Stats.Invited)

	_, err = svc.Create(ctx, domain.CreateRequest{CompanyID: companyID, Name: "Designer"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{CompanyID: companyID, Name: "PM"})
	assert.ErrorIs(t, err, domain.ErrProjectLimitReached)

	_, err = svc.Archive(ctx, companyID, first.ID)
	require.NoError(t, err)

	_, err = svc.Create(ctx, domain.CreateRequest{CompanyID: companyID, Name: "PM"})
	require.NoError(t, err)
}

func TestCreateProjectUnlimited(t *testing.T) {
	svc, companyID := setup(t, 0)
	for i := 0; i < 5; i++ {
		_, err := svc.Create(context.Background(), domain.CreateRequest{CompanyID: companyID, Name: "Role"})
		require.NoError(t, err)
	}
	projects, err := svc.List(context.Background(), domain.ListRequest{CompanyID: companyID})
	require.NoError(t, err)
	assert.Len(t, projects, 5)
}

func TestCreateProjectValidation(t *testing.T) {
	svc, companyID := setup(t, 0)

	_, err := svc.Create(context.Background(), domain.CreateRequest{CompanyID: companyID, Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Create(context.Background(), domain.CreateRequest{CompanyID: 777, Name: "x"})
	assert.ErrorIs(t, err, companydomain.ErrCompanyNotFound)
}

func TestGetIsScopedToCompany(t *testing.T) {
	svc, companyID := setup(t, 0)
	ctx := context.Background()

	project, err := svc.Create(ctx, domain.CreateRequest{CompanyID: companyID, Name: "QA"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, companyID+1, project.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	archived, err := svc.Archive(ctx, companyID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)

	again, err := svc.Archive(ctx, companyID, project.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, again.Status)

	active, err := svc.List(ctx, domain.ListRequest{CompanyID: companyID})
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.List(ctx, domain.ListRequest{CompanyID: companyID, IncludeArchived: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
