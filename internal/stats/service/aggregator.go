package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	"github.com/smallbiznis/assessly/internal/stats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// counterFor maps a status to the project counter it occupies.
var counterFor = map[invitedomain.Status]string{
	invitedomain.StatusStarted:   "stats_in_progress",
	invitedomain.StatusCompleted: "stats_completed",
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	Repo        domain.Repository
	ProjectRepo projectdomain.Repository
}

type Aggregator struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	repo        domain.Repository
	projectRepo projectdomain.Repository
}

func New(p Params) domain.Aggregator {
	return &Aggregator{
		db:          p.DB,
		log:         p.Log.Named("stats.aggregator"),
		clock:       p.Clock,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
	}
}

func (a *Aggregator) WithTx(tx *gorm.DB) domain.Aggregator {
	if tx == nil {
		return a
	}
	next := *a
	next.db = tx
	return &next
}

func (a *Aggregator) OnInviteCreated(ctx context.Context, invite invitedomain.Invite) error {
	now := a.clock.Now()
	inserted, err := a.repo.InsertMark(ctx, a.db, &domain.TransitionMark{
		InviteID:  invite.ID,
		ToStatus:  invitedomain.StatusPending,
		CreatedAt: now,
	})
	if err != nil {
		return fmt.Errorf("mark created: %w", err)
	}
	if !inserted {
		return nil
	}

	if err := a.repo.IncrementCounter(ctx, a.db, invite.ProjectID, "stats_invited", now); err != nil {
		return fmt.Errorf("count invited: %w", err)
	}
	return a.repo.InsertCandidate(ctx, a.db, &domain.ProjectCandidate{
		InviteID:       invite.ID,
		CompanyID:      invite.CompanyID,
		ProjectID:      invite.ProjectID,
		CandidateEmail: invite.CandidateEmail,
		Status:         invite.Status,
		DateInvited:    invite.SentAt,
		Scores:         datatypes.JSON("{}"),
		RawAnswers:     datatypes.JSON("null"),
		UpdatedAt:      now,
	})
}

func (a *Aggregator) OnInviteTransition(ctx context.Context, invite invitedomain.Invite, from, to invitedomain.Status) (bool, error) {
	now := a.clock.Now()
	inserted, err := a.repo.InsertMark(ctx, a.db, &domain.TransitionMark{
		InviteID:  invite.ID,
		ToStatus:  to,
		CreatedAt: now,
	})
	if err != nil {
		return false, fmt.Errorf("mark %s: %w", to, err)
	}
	if !inserted {
		a.log.Debug("transition already counted",
			zap.String("invite_id", invite.ID.String()),
			zap.String("to", to.String()),
		)
		return false, nil
	}

	if err := a.repo.MoveCounter(ctx, a.db, invite.ProjectID, counterFor[from], counterFor[to], now); err != nil {
		return false, fmt.Errorf("move counter %s->%s: %w", from, to, err)
	}

	updates := map[string]interface{}{
		"status":     to,
		"updated_at": now,
	}
	switch to {
	case invitedomain.StatusStarted:
		updates["date_started"] = invite.StartedAt
		updates["last_opened_at"] = invite.LastOpenedAt
	case invitedomain.StatusCompleted:
		updates["date_completed"] = invite.CompletedAt
	}
	if _, err := a.repo.UpdateCandidate(ctx, a.db, invite.ID, updates); err != nil {
		return false, fmt.Errorf("refresh candidate: %w", err)
	}
	return true, nil
}

func (a *Aggregator) RecordResult(ctx context.Context, inviteID snowflake.ID, scores map[string]float64, rawAnswers datatypes.JSON) error {
	encoded, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}
	if len(rawAnswers) == 0 {
		rawAnswers = datatypes.JSON("null")
	}
	summary := domain.Summarize(scores)

	rows, err := a.repo.UpdateCandidate(ctx, a.db, inviteID, map[string]interface{}{
		"scores":          datatypes.JSON(encoded),
		"raw_answers":     rawAnswers,
		"summary_average": summary.Average,
		"summary_min":     summary.Min,
		"summary_max":     summary.Max,
		"summary_count":   summary.Count,
		"updated_at":      a.clock.Now(),
	})
	if err != nil {
		return fmt.Errorf("record result: %w", err)
	}
	if rows == 0 {
		return domain.ErrCandidateNotFound
	}
	return nil
}

// TouchOpened is last-write-wins.
func (a *Aggregator) TouchOpened(ctx context.Context, inviteID snowflake.ID, at time.Time) error {
	_, err := a.repo.UpdateCandidate(ctx, a.db, inviteID, map[string]interface{}{
		"last_opened_at": at.UTC(),
		"updated_at":     a.clock.Now(),
	})
	return err
}

func (a *Aggregator) GetProjectCandidates(ctx context.Context, companyID, projectID snowflake.ID) ([]domain.Candidate, error) {
	project, err := a.projectRepo.FindByID(ctx, a.db, companyID, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, domain.ErrProjectNotFound
	}

	rows, err := a.repo.ListCandidates(ctx, a.db, companyID, projectID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Candidate, 0, len(rows))
	for _, row := range rows {
		view, err := row.View()
		if err != nil {
			return nil, fmt.Errorf("decode candidate %s: %w", row.InviteID, err)
		}
		out = append(out, view)
	}
	return out, nil
}

// GetCandidate hides rows owned by other companies behind ErrCandidateNotFound.
func (a *Aggregator) GetCandidate(ctx context.Context, companyID, inviteID snowflake.ID) (domain.Candidate, error) {
	row, err := a.repo.FindCandidate(ctx, a.db, inviteID)
	if err != nil {
		return domain.Candidate{}, err
	}
	if row == nil || row.CompanyID != companyID {
		return domain.Candidate{}, domain.ErrCandidateNotFound
	}
	return row.View()
}
