package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/assessment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, result *domain.Result) error {
	return db.WithContext(ctx).Create(result).Error
}

func (r *repo) FindByInvite(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*domain.Result, error) {
	var result domain.Result
	err := db.WithContext(ctx).
		Where("invite_id = ?", inviteID).
		Limit(1).
		Find(&result).Error
	if err != nil {
		return nil, err
	}
	if result.ID == 0 {
		return nil, nil
	}
	return &result, nil
}
