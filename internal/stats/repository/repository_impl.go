package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/stats/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var counterColumns = map[string]struct{}{
	"stats_invited":     {},
	"stats_in_progress": {},
	"stats_completed":   {},
}

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertMark(ctx context.Context, db *gorm.DB, mark *domain.TransitionMark) (bool, error) {
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(mark)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repo) IncrementCounter(ctx context.Context, db *gorm.DB, projectID snowflake.ID, column string, now time.Time) error {
	if _, ok := counterColumns[column]; !ok {
		return fmt.Errorf("unknown counter %q", column)
	}
	return db.WithContext(ctx).Exec(
		fmt.Sprintf(`UPDATE projects SET %[1]s = %[1]s + 1, updated_at = ? WHERE id = ?`, column),
		now, projectID,
	).Error
}

// MoveCounter decrements from (never below zero) and increments to in one statement.
// Either side may be empty.
func (r *repo) MoveCounter(ctx context.Context, db *gorm.DB, projectID snowflake.ID, from, to string, now time.Time) error {
	var sets []string
	if from != "" {
		if _, ok := counterColumns[from]; !ok {
			return fmt.Errorf("unknown counter %q", from)
		}
		sets = append(sets, fmt.Sprintf(`%[1]s = CASE WHEN %[1]s > 0 THEN %[1]s - 1 ELSE 0 END`, from))
	}
	if to != "" {
		if _, ok := counterColumns[to]; !ok {
			return fmt.Errorf("unknown counter %q", to)
		}
		sets = append(sets, fmt.Sprintf(`%[1]s = %[1]s + 1`, to))
	}
	if len(sets) == 0 {
		return nil
	}

	stmt := `UPDATE projects SET `
	for _, set := range sets {
		stmt += set + `, `
	}
	stmt += `updated_at = ? WHERE id = ?`
	return db.WithContext(ctx).Exec(stmt, now, projectID).Error
}

func (r *repo) InsertCandidate(ctx context.Context, db *gorm.DB, candidate *domain.ProjectCandidate) error {
	return db.WithContext(ctx).Create(candidate).Error
}

func (r *repo) UpdateCandidate(ctx context.Context, db *gorm.DB, inviteID snowflake.ID, updates map[string]interface{}) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.ProjectCandidate{}).
		Where("invite_id = ?", inviteID).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repo) FindCandidate(ctx context.Context, db *gorm.DB, inviteID snowflake.ID) (*domain.ProjectCandidate, error) {
	var candidate domain.ProjectCandidate
	err := db.WithContext(ctx).
		Where("invite_id = ?", inviteID).
		Limit(1).
		Find(&candidate).Error
	if err != nil {
		return nil, err
	}
	if candidate.InviteID == 0 {
		return nil, nil
	}
	return &candidate, nil
}

func (r *repo) ListCandidates(ctx context.Context, db *gorm.DB, companyID, projectID snowflake.ID) ([]domain.ProjectCandidate, error) {
	var candidates []domain.ProjectCandidate
	err := db.WithContext(ctx).
		Where("company_id = ? AND project_id = ?", companyID, projectID).
		Order("date_invited desc, invite_id desc").
		Find(&candidates).Error
	return candidates, err
}
