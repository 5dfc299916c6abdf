package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// IncrementUsed takes a seat only while one is free; zero rows means no seat or no company.
	IncrementUsed(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (int64, error)
	DecrementUsed(ctx context.Context, db *gorm.DB, companyID snowflake.ID, now time.Time) (int64, error)
	FindUsage(ctx context.Context, db *gorm.DB, companyID snowflake.ID) (*Usage, error)

	InsertReservation(ctx context.Context, db *gorm.DB, reservation *Reservation) error
	FindReservation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Reservation, error)
	TransitionReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to ReservationStatus, inviteID *snowflake.ID, now time.Time) (int64, error)
	ListHeldBefore(ctx context.Context, db *gorm.DB, before time.Time, limit int) ([]Reservation, error)
}
