package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Stats are denormalized counters owned by the stats aggregator. Pending invites have no
// counter of their own: they are implied by Invited.
type Stats struct {
	Invited    int `gorm:"not null;default:0" json:"invited"`
	InProgress int `gorm:"not null;default:0" json:"in_progress"`
	Completed  int `gorm:"not null;default:0" json:"completed"`
}

type Project struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID `gorm:"not null;index" json:"company_id"`
	Name        string       `gorm:"type:text;not null" json:"name"`
	Slug        string       `gorm:"type:text;not null" json:"slug"`
	Description string       `gorm:"type:text" json:"description,omitempty"`
	Status      Status       `gorm:"type:text;not null" json:"status"`
	Stats       Stats        `gorm:"embedded;embeddedPrefix:stats_" json:"stats"`
	CreatedAt   time.Time    `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time    `gorm:"not null" json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

func NewProject(id, companyID snowflake.ID, name, description string, now time.Time) (*Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidName
	}
	if companyID == 0 {
		return nil, ErrInvalidCompany
	}
	return &Project{
		ID:          id,
		CompanyID:   companyID,
		Name:        name,
		Slug:        slug.Make(name),
		Description: strings.TrimSpace(description),
		Status:      StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (p Project) Active() bool {
	return p.Status == StatusActive
}
