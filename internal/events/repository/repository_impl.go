package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/assessly/internal/events/domain"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error
	ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]domain.Event, error)
	MarkPublished(ctx context.Context, db *gorm.DB, ids []string, at time.Time) error
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Create(event).Error
}

func (r *repo) ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]domain.Event, error) {
	var events []domain.Event
	stmt := db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("occurred_at asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&events).Error
	return events, err
}

func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Model(&domain.Event{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", at).Error
}
