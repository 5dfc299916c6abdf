package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, company *Company) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Company, error)
	// AddLicenses grows license_count only while the total stays within limit.
	AddLicenses(ctx context.Context, db *gorm.DB, id snowflake.ID, count, limit int, now time.Time) (int64, error)

	InsertMember(ctx context.Context, db *gorm.DB, member *Member) error
	FindMemberByUserID(ctx context.Context, db *gorm.DB, userID string) (*Member, error)
	ListMembers(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Member, error)
}
