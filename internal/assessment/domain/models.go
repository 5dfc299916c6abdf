package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"gorm.io/datatypes"
)

// Result is the single scored outcome of an invite. It is never updated.
type Result struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	InviteID    snowflake.ID   `gorm:"not null;uniqueIndex" json:"invite_id"`
	CompanyID   snowflake.ID   `gorm:"not null;index" json:"company_id"`
	ProjectID   snowflake.ID   `gorm:"not null;index" json:"project_id"`
	Scores      datatypes.JSON `gorm:"not null" json:"scores"`
	RawAnswers  datatypes.JSON `gorm:"type:json;not null" json:"raw_answers"`
	SubmittedAt time.Time      `gorm:"not null" json:"submitted_at"`
}

func (Result) TableName() string { return "assessment_results" }

func NewResult(id snowflake.ID, invite invitedomain.Invite, scores map[string]float64, rawAnswers datatypes.JSON, now time.Time) (*Result, error) {
	if invite.ID == 0 {
		return nil, invitedomain.ErrInviteNotFound
	}
	encoded, err := json.Marshal(scores)
	if err != nil {
		return nil, ErrInvalidScores
	}
	if len(rawAnswers) == 0 {
		rawAnswers = datatypes.JSON("null")
	}
	return &Result{
		ID:          id,
		InviteID:    invite.ID,
		CompanyID:   invite.CompanyID,
		ProjectID:   invite.ProjectID,
		Scores:      datatypes.JSON(encoded),
		RawAnswers:  rawAnswers,
		SubmittedAt: now.UTC(),
	}, nil
}

// NormalizeScores trims competency names and rejects empty input, blank or colliding
// names and non-finite values.
func NormalizeScores(scores map[string]float64) (map[string]float64, error) {
	if len(scores) == 0 {
		return nil, ErrInvalidScores
	}
	out := make(map[string]float64, len(scores))
	for name, value := range scores {
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, ErrInvalidScores
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, ErrInvalidScores
		}
		if _, dup := out[name]; dup {
			return nil, ErrInvalidScores
		}
		out[name] = value
	}
	return out, nil
}

// NormalizeAnswers accepts any JSON document. Empty input is stored as null.
func NormalizeAnswers(raw json.RawMessage) (datatypes.JSON, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return datatypes.JSON("null"), nil
	}
	if !json.Valid(trimmed) {
		return nil, ErrInvalidAnswers
	}
	return datatypes.JSON(trimmed), nil
}
