package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/assessly/internal/company/domain"
	"gorm.io/gorm"
)

type Manager interface {
	TryReserveSeat(ctx context.Context, companyID snowflake.ID) (*Reservation, error)
	Consume(ctx context.Context, tx *gorm.DB, reservationID, inviteID snowflake.ID) error
	Release(ctx context.Context, reservationID snowflake.ID) error
	Usage(ctx context.Context, companyID snowflake.ID) (Usage, error)
	ReleaseStale(ctx context.Context, heldBefore time.Time, limit int) (int, error)
}

var (
	ErrQuotaExceeded       = errors.New("quota_exceeded")
	ErrCompanyNotFound     = companydomain.ErrCompanyNotFound
	ErrReservationNotFound = errors.New("reservation_not_found")
	ErrReservationNotHeld  = errors.New("reservation_not_held")
	ErrReservationConsumed = errors.New("reservation_consumed")
)
