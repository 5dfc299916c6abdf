package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/license/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) IncrementUsed(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET used_licenses_count = used_licenses_count + 1, updated_at = ?
		 WHERE id = ? AND used_licenses_count < license_count`,
		now, companyID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) DecrementUsed(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE companies
		 SET used_licenses_count = used_licenses_count - 1, updated_at = ?
		 WHERE id = ? AND used_licenses_count > 0`,
		now, companyID,
	)
	return result.RowsAffected, result.Error
}

func (r *repo) FindUsage(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*domain.Usage, error) {
	var rows []struct {
		LicenseCount      int
		UsedLicensesCount int
	}
	err := db.WithContext(ctx).Raw(
		`SELECT license_count, used_licenses_count FROM companies WHERE id = ?`,
		companyID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	usage := &domain.Usage{
		LicenseCount:      rows[0].LicenseCount,
		UsedLicensesCount: rows[0].UsedLicensesCount,
	}
	if usage.UsedLicensesCount < usage.LicenseCount {
		usage.Available = usage.LicenseCount - usage.UsedLicensesCount
	}
	return usage, nil
}

func (r *repo) InsertReservation(ctx context.Context, db *gorm.DB, reservation *domain.Reservation) error {
	return db.WithContext(ctx).Create(reservation).Error
}

func (r *repo) FindReservation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Reservation, error) {
	var reservation domain.Reservation
	err := db.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&reservation).Error
	if err != nil {
		return nil, err
	}
	if reservation.ID == 0 {
		return nil, nil
	}
	return &reservation, nil
}

func (r *repo) TransitionReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.ReservationStatus, inviteID *snowflake.ID, now time.Time) (int64, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	if inviteID != nil {
		updates["invite_id"] = *inviteID
	}
	result := db.WithContext(ctx).
		Model(&domain.Reservation{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *repo) ListHeldBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]domain.Reservation, error) {
	var reservations []domain.Reservation
	stmt := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.ReservationHeld, before).
		Order("created_at asc, id asc")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	err := stmt.Find(&reservations).Error
	return reservations, err
}
