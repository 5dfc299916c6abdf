package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/assessly/internal/invite/domain"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	"github.com/smallbiznis/assessly/internal/testutil/lifecycle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarioA_QuotaExhaustion(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")

	created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{
		CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, created.Status)
	assert.NotEmpty(t, created.Token)
	assert.True(t, created.ExpiresAt.Equal(s.Clock.Now().Add(7*24*time.Hour)))
	assert.Equal(t, 1, s.UsedLicenses(t, company.ID))

	_, err = s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{
		CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "b@x.com",
	})
	assert.ErrorIs(t, err, licensedomain.ErrQuotaExceeded)
	assert.Equal(t, 1, s.UsedLicenses(t, company.ID))
	assert.Equal(t, projectdomain.Stats{Invited: 1}, s.ProjectStats(t, project.ID))
}

func TestCreateInviteStoresOnlyTokenHash(t *testing.T) {
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 5)
	project := s.SeedProject(t, company.ID, "Backend")

	created, err := s.Invites.CreateInvite(context.Background(), domain.CreateInviteRequest{
		CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "Jane.Doe@Example.com",
	})
	require.NoError(t, err)

	assert.EqualValues(t, 0, s.CountRows(t, "invites", "token_hash = ?", created.Token))
	invite, err := s.Invites.Get(context.Background(), company.ID, created.InviteID)
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", invite.CandidateEmail)
	assert.Len(t, invite.TokenHash, 64)

	assert.EqualValues(t, 1, s.CountRows(t, "lifecycle_events", "aggregate_id = ? AND type = ?", created.InviteID, "invite.created"))
	assert.EqualValues(t, 1, s.CountRows(t, "license_reservations", "invite_id = ? AND status = ?", created.InviteID, "consumed"))
}

func TestCreateInviteReleasesSeatOnFailure(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")

	_, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{
		CompanyID: company.ID, ProjectID: project.ID + 1, CandidateEmail: "a@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	assert.Equal(t, 0, s.UsedLicenses(t, company.ID))
	assert.EqualValues(t, 1, s.CountRows(t, "license_reservations", "status = ?", "released"))

	require.NoError(t, s.DB.Model(&projectdomain.Project{}).Where("id = ?", project.ID).Update("status", projectdomain.StatusArchived).Error)
	_, err = s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{
		CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrProjectArchived)
	assert.Equal(t, 0, s.UsedLicenses(t, company.ID))
}

func TestCreateInviteValidation(t *testing.T) {
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")

	for _, email := range []string{"", "not-an-email", "Jane <jane@x.com>"} {
		_, err := s.Invites.CreateInvite(context.Background(), domain.CreateInviteRequest{
			CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: email,
		})
		assert.ErrorIs(t, err, domain.ErrInvalidEmail, "email %q", email)
	}
	assert.EqualValues(t, 0, s.CountRows(t, "license_reservations", ""))

	_, err := s.Invites.CreateInvite(context.Background(), domain.CreateInviteRequest{
		CompanyID: company.ID + 1, ProjectID: project.ID, CandidateEmail: "a@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrCompanyNotFound)
}

func TestConcurrentCreateNeverExceedsLicenses(t *testing.T) {
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 4)
	project := s.SeedProject(t, company.ID, "Backend")

	const callers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		exceeded int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Invites.CreateInvite(context.Background(), domain.CreateInviteRequest{
				CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "c@x.com",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, licensedomain.ErrQuotaExceeded):
				exceeded++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 4, ok)
	assert.Equal(t, callers-4, exceeded)
	assert.Equal(t, 4, s.UsedLicenses(t, company.ID))
	assert.Equal(t, 4, s.ProjectStats(t, project.ID).Invited)
}

func TestOpenStartsThenTouches(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")
	created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
	require.NoError(t, err)

	opened, err := s.Invites.Open(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, opened.Status)
	assert.Equal(t, "a@x.com", opened.CandidateEmail)
	assert.Equal(t, project.ID, opened.ProjectID)
	assert.Equal(t, company.ID, opened.CompanyID)

	s.Clock.Advance(time.Hour)
	again, err := s.Invites.Open(ctx, created.Token)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStarted, again.Status)

	invite, err := s.Invites.Get(ctx, company.ID, created.InviteID)
	require.NoError(t, err)
	require.NotNil(t, invite.StartedAt)
	require.NotNil(t, invite.LastOpenedAt)
	assert.True(t, invite.LastOpenedAt.Equal(s.Clock.Now()))
	assert.True(t, invite.StartedAt.Before(*invite.LastOpenedAt))

	assert.Equal(t, projectdomain.Stats{Invited: 1, InProgress: 1}, s.ProjectStats(t, project.ID))
	assert.EqualValues(t, 1, s.CountRows(t, "lifecycle_events", "aggregate_id = ? AND type = ?", created.InviteID, "invite.started"))
}

func TestConcurrentOpensStartOnce(t *testing.T) {
	s := lifecycle.New(t)
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")
	created, err := s.Invites.CreateInvite(context.Background(), domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := s.Invites.Open(context.Background(), created.Token)
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			if res.Status != domain.StatusStarted {
				t.Errorf("expected started, got %s", res.Status)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, projectdomain.Stats{Invited: 1, InProgress: 1}, s.ProjectStats(t, project.ID))
	assert.EqualValues(t, 1, s.CountRows(t, "lifecycle_events", "type = ?", "invite.started"))
}

func TestScenarioC_OpenAfterExpiry(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")
	created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
	require.NoError(t, err)

	s.SetInviteExpiry(t, created.InviteID, s.Clock.Now().Add(-time.Second))

	_, err = s.Invites.Open(ctx, created.Token)
	assert.ErrorIs(t, err, domain.ErrInviteGone)

	invite, err := s.Invites.Get(ctx, company.ID, created.InviteID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, invite.Status)
	require.NotNil(t, invite.ExpiredAt)

	_, err = s.Invites.Open(ctx, created.Token)
	assert.ErrorIs(t, err, domain.ErrInviteGone)
	assert.EqualValues(t, 1, s.CountRows(t, "lifecycle_events", "type = ?", "invite.expired"))
}

func TestScenarioD_UnknownToken(t *testing.T) {
	s := lifecycle.New(t)

	_, err := s.Invites.Open(context.Background(), "invalid-token-123")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)

	_, err = s.Invites.Open(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}

func TestValidateIsReadOnly(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 1)
	project := s.SeedProject(t, company.ID, "Backend")
	created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
	require.NoError(t, err)

	res, err := s.Invites.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, domain.StatusPending, res.Status)
	assert.Equal(t, project.ID, res.ProjectID)

	s.Clock.Advance(8 * 24 * time.Hour)
	res, err = s.Invites.Validate(ctx, created.Token)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Equal(t, domain.StatusExpired, res.Status)

	invite, err := s.Invites.Get(ctx, company.ID, created.InviteID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, invite.Status)

	res, err = s.Invites.Validate(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.Empty(t, res.Status)
}

func TestExpireDueSweepsOverdueInvites(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 3)
	project := s.SeedProject(t, company.ID, "Backend")

	var tokens []string
	for i := 0; i < 3; i++ {
		created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
		require.NoError(t, err)
		tokens = append(tokens, created.Token)
	}
	_, err := s.Invites.Open(ctx, tokens[0])
	require.NoError(t, err)

	n, err := s.Invites.ExpireDue(ctx, s.Clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	s.Clock.Advance(7 * 24 * time.Hour)
	n, err = s.Invites.ExpireDue(ctx, s.Clock.Now(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.Invites.ExpireDue(ctx, s.Clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.EqualValues(t, 3, s.CountRows(t, "invites", "status = ?", domain.StatusExpired))
	assert.Equal(t, projectdomain.Stats{Invited: 3}, s.ProjectStats(t, project.ID))
}

func TestListByProjectScopedToCompany(t *testing.T) {
	s := lifecycle.New(t)
	ctx := context.Background()
	company := s.SeedCompany(t, 2)
	other := s.SeedCompany(t, 2)
	project := s.SeedProject(t, company.ID, "Backend")

	created, err := s.Invites.CreateInvite(ctx, domain.CreateInviteRequest{CompanyID: company.ID, ProjectID: project.ID, CandidateEmail: "a@x.com"})
	require.NoError(t, err)

	invites, err := s.Invites.ListByProject(ctx, company.ID, project.ID)
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, created.InviteID, invites[0].ID)

	_, err = s.Invites.ListByProject(ctx, other.ID, project.ID)
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)

	_, err = s.Invites.Get(ctx, other.ID, created.InviteID)
	assert.ErrorIs(t, err, domain.ErrInviteNotFound)
}
