package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"gorm.io/datatypes"
)

// ScoreSummary is derived from a result's scores. Count is zero until a result is recorded.
type ScoreSummary struct {
	Average float64 `gorm:"not null;default:0" json:"average"`
	Min     float64 `gorm:"not null;default:0" json:"min"`
	Max     float64 `gorm:"not null;default:0" json:"max"`
	Count   int     `gorm:"not null;default:0" json:"count"`
}

// ProjectCandidate is the per-invite row HR reads. It is maintained alongside the invite
// and never written by request handlers directly.
type ProjectCandidate struct {
	InviteID       snowflake.ID        `gorm:"primaryKey"`
	CompanyID      snowflake.ID        `gorm:"not null;index:idx_project_candidates_project,priority:2"`
	ProjectID      snowflake.ID        `gorm:"not null;index:idx_project_candidates_project,priority:1"`
	CandidateEmail string              `gorm:"type:text;not null"`
	Status         invitedomain.Status `gorm:"type:text;not null"`
	DateInvited    time.Time           `gorm:"not null;index"`
	DateStarted    *time.Time
	LastOpenedAt   *time.Time
	DateCompleted  *time.Time
	Scores         datatypes.JSON `gorm:"not null"`
	RawAnswers     datatypes.JSON `gorm:"type:json;not null"`
	Summary        ScoreSummary   `gorm:"embedded;embeddedPrefix:summary_"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

func (ProjectCandidate) TableName() string { return "project_candidates" }

// TransitionMark records that the counters already saw an invite reach a status.
type TransitionMark struct {
	InviteID  snowflake.ID        `gorm:"primaryKey;autoIncrement:false"`
	ToStatus  invitedomain.Status `gorm:"primaryKey;type:varchar(16)"`
	CreatedAt time.Time           `gorm:"not null"`
}

func (TransitionMark) TableName() string { return "invite_transition_marks" }

// Candidate is the read model returned to HR.
type Candidate struct {
	InviteID      snowflake.ID        `json:"invite_id"`
	ProjectID     snowflake.ID        `json:"project_id"`
	Email         string              `json:"email"`
	Status        invitedomain.Status `json:"status"`
	DateInvited   time.Time           `json:"date_invited"`
	DateStarted   *time.Time          `json:"date_started,omitempty"`
	LastOpenedAt  *time.Time          `json:"last_opened_at,omitempty"`
	DateCompleted *time.Time          `json:"date_completed,omitempty"`
	ScoreSummary  *ScoreSummary       `json:"score_summary,omitempty"`
	Scores        map[string]float64  `json:"scores,omitempty"`
	RawAnswers    json.RawMessage     `json:"raw_answers,omitempty"`
}

func (c ProjectCandidate) View() (Candidate, error) {
	view := Candidate{
		InviteID:      c.InviteID,
		ProjectID:     c.ProjectID,
		Email:         c.CandidateEmail,
		Status:        c.Status,
		DateInvited:   c.DateInvited,
		DateStarted:   c.DateStarted,
		LastOpenedAt:  c.LastOpenedAt,
		DateCompleted: c.DateCompleted,
	}
	if c.Summary.Count == 0 {
		return view, nil
	}

	summary := c.Summary
	view.ScoreSummary = &summary
	if err := json.Unmarshal(c.Scores, &view.Scores); err != nil {
		return Candidate{}, err
	}
	if raw := c.RawAnswers; len(raw) > 0 && string(raw) != "null" {
		view.RawAnswers = json.RawMessage(raw)
	}
	return view, nil
}

// Summarize computes the score summary. Scores must be non-empty.
func Summarize(scores map[string]float64) ScoreSummary {
	summary := ScoreSummary{Count: len(scores)}
	if len(scores) == 0 {
		return summary
	}
	first := true
	total := 0.0
	for _, v := range scores {
		total += v
		if first || v < summary.Min {
			summary.Min = v
		}
		if first || v > summary.Max {
			summary.Max = v
		}
		first = false
	}
	summary.Average = total / float64(len(scores))
	return summary
}
