package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertWithinLimit writes the project only while the company has fewer than limit
	// active projects. A limit of zero disables the check.
	InsertWithinLimit(ctx context.Context, db *gorm.DB, project *Project, limit int) (int64, error)
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Project, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter) ([]Project, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, from, to Status, now time.Time) (int64, error)
}

type ListFilter struct {
	IncludeArchived bool
	CreatedBefore   *time.Time
}
