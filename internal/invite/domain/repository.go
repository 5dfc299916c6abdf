package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invite *Invite) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invite, error)
	FindByCompany(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Invite, error)
	FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*Invite, error)
	ListByProject(ctx context.Context, db *gorm.DB, companyID, projectID snowflake.ID) ([]Invite, error)
	// ListDue returns non-terminal invites whose deadline is at or before now, oldest first.
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Invite, error)

	// CompareAndSet writes next only if the stored status still equals expected.
	CompareAndSet(ctx context.Context, db *gorm.DB, next *Invite, expected Status) (int64, error)
	TouchOpened(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
