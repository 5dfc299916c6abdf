package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Aggregator keeps project counters and the candidate view in step with invites.
// Every write method must run in the transaction that changed the invite.
type Aggregator interface {
	WithTx(tx *gorm.DB) Aggregator

	OnInviteCreated(ctx context.Context, invite invitedomain.Invite) error
	// OnInviteTransition reports false when the transition was already counted.
	OnInviteTransition(ctx context.Context, invite invitedomain.Invite, from, to invitedomain.Status) (bool, error)
	RecordResult(ctx context.Context, inviteID snowflake.ID, scores map[string]float64, rawAnswers datatypes.JSON) error
	TouchOpened(ctx context.Context, inviteID snowflake.ID, at time.Time) error

	GetProjectCandidates(ctx context.Context, companyID, projectID snowflake.ID) ([]Candidate, error)
	GetCandidate(ctx context.Context, companyID, inviteID snowflake.ID) (Candidate, error)
}

var (
	ErrProjectNotFound   = projectdomain.ErrProjectNotFound
	ErrCandidateNotFound = errors.New("candidate_not_found")
)
