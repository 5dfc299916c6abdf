package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/invite/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invite *domain.Invite) error {
	return db.WithContext(ctx).Create(invite).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invite, error) {
	return r.findOne(ctx, db, "id = ?", id)
}

func (r *repo) FindByCompany(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Invite, error) {
	return r.findOne(ctx, db, "company_id = ? AND id = ?", companyID, id)
}

func (r *repo) FindByTokenHash(ctx context.Context, db *gorm.DB, tokenHash string) (*domain.Invite, error) {
	return r.findOne(ctx, db, "token_hash = ?", tokenHash)
}

func (r *repo) findOne(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.Invite, error) {
	var invite domain.Invite
	err := db.WithContext(ctx).
		Where(query, args...).
		Limit(1).
		Find(&invite).Error
	if err != nil {
		return nil, err
	}
	if invite.ID == 0 {
		return nil, nil
	}
	return &invite, nil
}

func (r *repo) ListByProject(ctx context.Context, db *gorm.DB, companyID, projectID snowflake.ID) ([]domain.Invite, error) {
	var invites []domain.Invite
	err := db.WithContext(ctx).
		Where("company_id = ? AND project_id = ?", companyID, projectID).
		Order("sent_at desc, id desc").
		Find(&invites).Error
	return invites, err
}

func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]domain.Invite, error) {
	var invites []domain.Invite
	err := db.WithContext(ctx).
		Where("status IN ? AND expires_at <= ?", []domain.Status{domain.StatusPending, domain.StatusStarted}, now).
		Order("expires_at asc, id asc").
		Limit(limit).
		Find(&invites).Error
	return invites, err
}

// CompareAndSet writes only the columns the target status owns, so it never rolls back a
// concurrent TouchOpened with a stale last_opened_at.
func (r *repo) CompareAndSet(ctx context.Context, db *gorm.DB, next *domain.Invite, expected domain.Status) (int64, error) {
	sets := []string{"status = ?", "updated_at = ?"}
	args := []interface{}{next.Status, next.UpdatedAt}
	switch next.Status {
	case domain.StatusStarted:
		sets = append(sets, "started_at = ?", "last_opened_at = ?")
		args = append(args, next.StartedAt, next.LastOpenedAt)
	case domain.StatusCompleted:
		sets = append(sets, "completed_at = ?", "result_id = ?")
		args = append(args, next.CompletedAt, next.ResultID)
	case domain.StatusExpired:
		sets = append(sets, "expired_at = ?")
		args = append(args, next.ExpiredAt)
	}
	args = append(args, next.ID, expected)

	result := db.WithContext(ctx).Exec(
		"UPDATE invites SET "+strings.Join(sets, ", ")+" WHERE id = ? AND status = ?",
		args...,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) TouchOpened(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE invites SET last_opened_at = ?, updated_at = ? WHERE id = ?`,
		at, at, id,
	).Error
}
