package domain

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/bwmarrin/snowflake"

	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
)

type Service interface {
	SubmitResult(ctx context.Context, token string, scores map[string]float64, rawAnswers json.RawMessage) (*Result, error)
	GetResult(ctx context.Context, companyID, inviteID snowflake.ID) (*Result, error)
}

var (
	ErrAlreadySubmitted = errors.New("already_submitted")
	ErrInvalidScores    = errors.New("invalid_scores")
	ErrInvalidAnswers   = errors.New("invalid_answers")
	ErrResultNotFound   = errors.New("result_not_found")

	ErrInviteNotFound = invitedomain.ErrInviteNotFound
	ErrInviteGone     = invitedomain.ErrInviteGone
)
