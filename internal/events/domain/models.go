package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type EventType string

const (
	EventInviteCreated   EventType = "invite.created"
	EventInviteStarted   EventType = "invite.started"
	EventInviteCompleted EventType = "invite.completed"
	EventInviteExpired   EventType = "invite.expired"
)

// Event is an outbox row written in the same transaction as the change it describes.
type Event struct {
	ID            string         `gorm:"primaryKey;type:varchar(26)" json:"id"`
	CompanyID     snowflake.ID   `gorm:"not null;index" json:"company_id"`
	AggregateID   snowflake.ID   `gorm:"not null;index" json:"aggregate_id"`
	Type          EventType      `gorm:"type:text;not null" json:"type"`
	Payload       datatypes.JSON `gorm:"not null" json:"payload"`
	CorrelationID string         `gorm:"type:text" json:"correlation_id,omitempty"`
	TraceID       string         `gorm:"type:text" json:"trace_id,omitempty"`
	OccurredAt    time.Time      `gorm:"not null;index" json:"occurred_at"`
	PublishedAt   *time.Time     `gorm:"index" json:"published_at,omitempty"`
}

func (Event) TableName() string { return "lifecycle_events" }

type Input struct {
	CompanyID   snowflake.ID
	AggregateID snowflake.ID
	Type        EventType
	Payload     interface{}
	OccurredAt  time.Time
}
