package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// Company owns projects and a pool of license seats. MaxProjects of zero means unlimited.
type Company struct {
	ID                snowflake.ID `gorm:"primaryKey" json:"id"`
	Name              string       `gorm:"type:text;not null" json:"name"`
	Slug              string       `gorm:"type:text;not null;uniqueIndex" json:"slug"`
	LicenseCount      int          `gorm:"not null;default:0" json:"license_count"`
	UsedLicensesCount int          `gorm:"not null;default:0" json:"used_licenses_count"`
	MaxProjects       int          `gorm:"not null;default:0" json:"max_projects"`
	CreatedAt         time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time    `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }

func (c Company) AvailableLicenses() int {
	if c.UsedLicensesCount >= c.LicenseCount {
		return 0
	}
	return c.LicenseCount - c.UsedLicensesCount
}

// Member binds an externally verified user id to exactly one company.
type Member struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID `gorm:"not null;index" json:"company_id"`
	UserID    string       `gorm:"type:text;not null;uniqueIndex" json:"user_id"`
	Role      Role         `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
}

func (Member) TableName() string { return "company_members" }

const (
	// MaxLicenseCount bounds a company's seat pool.
	MaxLicenseCount = 100000
	// MaxLicenseGrant bounds a single seat grant.
	MaxLicenseGrant = 10000
)

func NewCompany(id snowflake.ID, name string, licenseCount, maxProjects int, now time.Time) (*Company, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if licenseCount < 0 || licenseCount > MaxLicenseCount {
		return nil, ErrInvalidLicenseCount
	}
	if maxProjects < 0 {
		return nil, ErrInvalidMaxProjects
	}
	return &Company{
		ID:           id,
		Name:         name,
		Slug:         slug.Make(name) + "-" + id.Base36(),
		LicenseCount: licenseCount,
		MaxProjects:  maxProjects,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func NewMember(id, companyID snowflake.ID, userID string, role Role, now time.Time) (*Member, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidUserID
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	return &Member{
		ID:        id,
		CompanyID: companyID,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
	}, nil
}
