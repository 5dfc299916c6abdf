package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateRequest struct {
	CompanyID   snowflake.ID
	Name        string
	Description string
}

type ListRequest struct {
	CompanyID       snowflake.ID
	IncludeArchived bool
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (Project, error)
	Get(ctx context.Context, companyID, projectID snowflake.ID) (Project, error)
	List(ctx context.Context, req ListRequest) ([]Project, error)
	Archive(ctx context.Context, companyID, projectID snowflake.ID) (Project, error)
}

var (
	ErrProjectNotFound     = errors.New("project_not_found")
	ErrProjectArchived     = errors.New("project_archived")
	ErrProjectLimitReached = errors.New("project_limit_reached")
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidCompany      = errors.New("invalid_company")
)
