package domain

import (
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Invite is one candidate's access to one project's assessment.
// ResultID and CompletedAt are set exactly when Status is completed.
type Invite struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID      snowflake.ID  `gorm:"not null;index:idx_invites_project_company,priority:2" json:"company_id"`
	ProjectID      snowflake.ID  `gorm:"not null;index:idx_invites_project_company,priority:1" json:"project_id"`
	CandidateEmail string        `gorm:"type:text;not null" json:"candidate_email"`
	TokenHash      string        `gorm:"type:varchar(64);not null;uniqueIndex" json:"-"`
	Status         Status        `gorm:"type:text;not null;index:idx_invites_status_expires,priority:1" json:"status"`
	SentAt         time.Time     `gorm:"not null" json:"sent_at"`
	ExpiresAt      time.Time     `gorm:"not null;index:idx_invites_status_expires,priority:2" json:"expires_at"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	LastOpenedAt   *time.Time    `json:"last_opened_at,omitempty"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
	ExpiredAt      *time.Time    `json:"expired_at,omitempty"`
	ResultID       *snowflake.ID `json:"result_id,omitempty"`
	CreatedAt      time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null" json:"updated_at"`
}

func (Invite) TableName() string { return "invites" }

func NewInvite(id, companyID, projectID snowflake.ID, email, tokenHash string, sentAt time.Time, ttl time.Duration) (*Invite, error) {
	normalized, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if companyID == 0 || projectID == 0 {
		return nil, ErrInvalidInvite
	}
	if len(tokenHash) != 64 {
		return nil, ErrInvalidInvite
	}
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	sentAt = sentAt.UTC()
	return &Invite{
		ID:             id,
		CompanyID:      companyID,
		ProjectID:      projectID,
		CandidateEmail: normalized,
		TokenHash:      tokenHash,
		Status:         StatusPending,
		SentAt:         sentAt,
		ExpiresAt:      sentAt.Add(ttl),
		CreatedAt:      sentAt,
		UpdatedAt:      sentAt,
	}, nil
}

// NormalizeEmail accepts a bare address and lowercases it.
func NormalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

// Overdue reports whether the invite's deadline has passed at now.
func (i Invite) Overdue(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// EffectiveStatus reports expired for a live invite whose deadline has passed,
// even before anything has written the transition.
func (i Invite) EffectiveStatus(now time.Time) Status {
	if !i.Status.Terminal() && i.Overdue(now) {
		return StatusExpired
	}
	return i.Status
}

// Transition is a requested status change. ResultID is required when To is completed.
type Transition struct {
	To       Status
	At       time.Time
	ResultID *snowflake.ID
}

// Apply returns a copy of the invite with t applied. Legality is checked by the caller.
func (i Invite) Apply(t Transition) Invite {
	at := t.At.UTC()
	i.Status = t.To
	i.UpdatedAt = at
	switch t.To {
	case StatusStarted:
		i.StartedAt = &at
		i.LastOpenedAt = &at
	case StatusCompleted:
		i.CompletedAt = &at
		i.ResultID = t.ResultID
	case StatusExpired:
		i.ExpiredAt = &at
	}
	return i
}
