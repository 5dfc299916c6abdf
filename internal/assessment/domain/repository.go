package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, result *Result) error
	FindByInvite(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*Result, error)
}
