package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/project/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertWithinLimit(ctx context.Context, db *gorm.DB, project *domain.Project, limit int) (int64, error) {
	if limit <= 0 {
		result := db.WithContext(ctx).Create(project)
		return result.RowsAffected, result.Error
	}

	result := db.WithContext(ctx).Exec(
		`INSERT INTO projects (id, company_id, name, slug, description, status,
			stats_invited, stats_in_progress, stats_completed, created_at, updated_at)
		 SELECT ?, ?, ?, ?, ?, ?, 0, 0, 0, ?, ?
		 WHERE (SELECT COUNT(*) FROM projects WHERE company_id = ? AND status = ?) < ?`,
		project.ID,
		project.CompanyID,
		project.Name,
		project.Slug,
		project.Description,
		project.Status,
		project.CreatedAt,
		project.UpdatedAt,
		project.CompanyID,
		domain.StatusActive,
		limit,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Project, error) {
	var project domain.Project
	err := db.WithContext(ctx).
		Where("company_id = ? AND id = ?", companyID, id).
		Limit(1).
		Find(&project).Error
	if err != nil {
		return nil, err
	}
	if project.ID == 0 {
		return nil, nil
	}
	return &project, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter) ([]domain.Project, error) {
	var projects []domain.Project
	stmt := db.WithContext(ctx).
		Model(&domain.Project{}).
		Where("company_id = ?", companyID)
	if !filter.IncludeArchived {
		stmt = stmt.Where("status = ?", domain.StatusActive)
	}
	if filter.CreatedBefore != nil {
		stmt = stmt.Where("created_at <= ?", *filter.CreatedBefore)
	}
	err := stmt.Order("created_at desc, id desc").Find(&projects).Error
	return projects, err
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID, from, to domain.Status, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE projects SET status = ?, updated_at = ? WHERE company_id = ? AND id = ? AND status = ?`,
		to, now, companyID, id, from,
	)
	return result.RowsAffected, result.Error
}
