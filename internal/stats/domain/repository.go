package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// InsertMark reports false when the mark already existed.
	InsertMark(ctx context.Context, db *gorm.DB, mark *TransitionMark) (bool, error)
	IncrementCounter(ctx context.Context, db *gorm.DB, projectID snowflake.ID, column string, now time.Time) error
	MoveCounter(ctx context.Context, db *gorm.DB, projectID snowflake.ID, from, to string, now time.Time) error

	InsertCandidate(ctx context.Context, db *gorm.DB, candidate *ProjectCandidate) error
	UpdateCandidate(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, updates map[string]interface{}) (int64, error)
	FindCandidate(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*ProjectCandidate, error)
	ListCandidates(ctx context.Context, db *gorm.DB, companyID, projectID snowflake.ID) ([]ProjectCandidate, error)
}
