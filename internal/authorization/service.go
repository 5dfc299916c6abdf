package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
)

const (
	ObjectCompany   = "company"
	ObjectProject   = "project"
	ObjectInvite    = "invite"
	ObjectCandidate = "candidate"
	ObjectAnalytics = "analytics"
	ObjectPlatform  = "platform"
)

const (
	ActionCompanyView   = "company.view"
	ActionCompanyManage = "company.manage"

	ActionProjectView    = "project.view"
	ActionProjectCreate  = "project.create"
	ActionProjectArchive = "project.archive"

	ActionInviteView   = "invite.view"
	ActionInviteCreate = "invite.create"

	ActionCandidateView = "candidate.view"
	ActionAnalyticsView = "analytics.view"

	// Platform actions are checked against the caller alone, outside any company.
	ActionCompanyProvision = "company.provision"
	ActionLicenseGrant     = "license.grant"
)

// Principal is a verified user bound to the company they belong to.
type Principal struct {
	UserID    string
	CompanyID snowflake.ID
	Role      companydomain.Role
}

type Service interface {
	// Resolve finds the caller's company membership.
	Resolve(ctx context.Context, userID string) (Principal, error)
	Authorize(ctx context.Context, principal Principal, object, action string) error
	// AuthorizePlatform checks an action that is not scoped to a company.
	AuthorizePlatform(ctx context.Context, userID, action string) error
}

var (
	ErrForbidden     = errors.New("forbidden")
	ErrNotMember     = errors.New("not_a_member")
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
)
