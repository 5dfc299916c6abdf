package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type ProvisionRequest struct {
	Name         string
	LicenseCount int
	MaxProjects  int
	AdminUserID  string
}

type ProvisionResponse struct {
	Company Company `json:"company"`
	Admin   Member  `json:"admin"`
}

type AddMemberRequest struct {
	CompanyID snowflake.ID
	UserID    string
	Role      Role
}

// AddLicensesRequest records who granted seats and why.
type AddLicensesRequest struct {
	CompanyID snowflake.ID
	Count     int
	Actor     string
	Reason    string
}

type Service interface {
	Provision(ctx context.Context, req ProvisionRequest) (ProvisionResponse, error)
	Get(ctx context.Context, companyID snowflake.ID) (Company, error)
	AddMember(ctx context.Context, req AddMemberRequest) (Member, error)
	ListMembers(ctx context.Context, companyID snowflake.ID) ([]Member, error)
	FindMember(ctx context.Context, userID string) (Member, error)
	AddLicenses(ctx context.Context, req AddLicensesRequest) (Company, error)
}

var (
	ErrCompanyNotFound     = errors.New("company_not_found")
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrMemberExists        = errors.New("member_exists")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidLicenseCount = errors.New("invalid_license_count")
	ErrInvalidMaxProjects  = errors.New("invalid_max_projects")
	ErrInvalidUserID       = errors.New("invalid_user_id")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidReason       = errors.New("invalid_reason")
)
