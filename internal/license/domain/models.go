package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type ReservationStatus string

const (
	ReservationHeld     ReservationStatus = "held"
	ReservationConsumed ReservationStatus = "consumed"
	ReservationReleased ReservationStatus = "released"
)

// Reservation is one seat taken from a company's pool. A held seat is either
// consumed by the invite it was taken for or released back to the pool.
type Reservation struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID      `gorm:"not null;index" json:"company_id"`
	Status    ReservationStatus `gorm:"type:text;not null;index" json:"status"`
	InviteID  *snowflake.ID     `gorm:"uniqueIndex" json:"invite_id,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Reservation) TableName() string { return "license_reservations" }

type Usage struct {
	LicenseCount      int `json:"license_count"`
	UsedLicensesCount int `json:"used_licenses_count"`
	Available         int `json:"available"`
}
