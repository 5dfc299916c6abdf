package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	"gorm.io/gorm"
)

type Service interface {
	CreateInvite(ctx context.Context, req CreateInviteRequest) (CreateInviteResponse, error)
	Open(ctx context.Context, token string) (OpenResponse, error)
	Validate(ctx context.Context, token string) (ValidateResponse, error)
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
	Get(ctx context.Context, companyID, inviteID snowflake.ID) (Invite, error)
	ListByProject(ctx context.Context, companyID, projectID snowflake.ID) ([]Invite, error)
}

// Transitioner moves an invite inside the caller's transaction. applied is false when the
// invite was already in the target status.
type Transitioner interface {
	Transition(ctx context.Context, tx *gorm.DB, invite *Invite, t Transition) (*Invite, bool, error)
}

type CreateInviteRequest struct {
	CompanyID      snowflake.ID `json:"-"`
	ProjectID      snowflake.ID `json:"project_id"`
	CandidateEmail string       `json:"candidate_email"`
}

type CreateInviteResponse struct {
	InviteID  snowflake.ID `json:"invite_id"`
	Token     string       `json:"token"`
	Status    Status       `json:"status"`
	ExpiresAt time.Time    `json:"expires_at"`
}

type OpenResponse struct {
	CandidateEmail string       `json:"candidate_email"`
	ProjectID      snowflake.ID `json:"project_id"`
	CompanyID      snowflake.ID `json:"company_id"`
	Status         Status       `json:"status"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

type ValidateResponse struct {
	Valid     bool         `json:"valid"`
	Status    Status       `json:"status,omitempty"`
	ProjectID snowflake.ID `json:"project_id,omitempty"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

var (
	ErrInviteNotFound    = errors.New("invite_not_found")
	ErrInviteGone        = errors.New("invite_gone")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidInvite     = errors.New("invalid_invite")
	ErrInvalidTTL        = errors.New("invalid_ttl")
	ErrTransitionLost    = errors.New("transition_contended")

	ErrCompanyNotFound = companydomain.ErrCompanyNotFound
	ErrProjectNotFound = projectdomain.ErrProjectNotFound
	ErrProjectArchived = projectdomain.ErrProjectArchived
)
