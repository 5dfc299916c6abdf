package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/company/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, company *domain.Company) error {
	return db.WithContext(ctx).Create(company).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Company, error) {
	var company domain.Company
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&company).Error
	if err != nil {
		return nil, err
	}
	if company.ID == 0 {
		return nil, nil
	}
	return &company, nil
}

func (r *repo) AddLicenses(ctx context.Context, db *gorm.DB, id snowflake.ID, count, limit int, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE companies SET license_count = license_count + ?, updated_at = ? WHERE id = ? AND license_count + ? <= ?`,
		count, now.UTC(), id, count, limit,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) InsertMember(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Create(member).Error
}

func (r *repo) FindMemberByUserID(ctx context.Context, db *gorm.DB, userID string) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Limit(1).
		Find(&member).Error
	if err != nil {
		return nil, err
	}
	if member.ID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) ListMembers(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]domain.Member, error) {
	var members []domain.Member
	err := db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Order("created_at asc, id asc").
		Find(&members).Error
	return members, err
}
