package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/assessment/domain"
	"github.com/smallbiznis/assessly/internal/clock"
	invitedomain "github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/invite/token"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Invites   invitedomain.Repository
	Machine   invitedomain.Transitioner
	Stats     statsdomain.Aggregator
	Retry     db.RetryConfig
	Lifecycle *metrics.LifecycleMetrics `optional:"true"`
	Metrics   *metrics.Metrics          `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	invites   invitedomain.Repository
	machine   invitedomain.Transitioner
	stats     statsdomain.Aggregator
	retry     db.RetryConfig
	lifecycle *metrics.LifecycleMetrics
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("assessment.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		invites:   p.Invites,
		machine:   p.Machine,
		stats:     p.Stats,
		retry:     p.Retry,
		lifecycle: p.Lifecycle,
		metrics:   p.Metrics,
	}
}

// SubmitResult completes the invite and stores its only result. The completion is a
// conditional write on the observed status and the result row carries a unique invite id,
// so of two concurrent submissions exactly one succeeds.
func (s *Service) SubmitResult(ctx context.Context, raw string, scores map[string]float64, rawAnswers json.RawMessage) (*domain.Result, error) {
	cleaned, err := domain.NormalizeScores(scores)
	if err != nil {
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeInvalid)
		return nil, err
	}
	answers, err := domain.NormalizeAnswers(rawAnswers)
	if err != nil {
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeInvalid)
		return nil, err
	}
	normalized, err := token.Normalize(raw)
	if err != nil {
		return nil, domain.ErrInviteNotFound
	}
	hash := token.Hash(normalized)

	var (
		result *domain.Result
		gone   bool
	)
	err = db.Retry(ctx, s.retry, func(ctx context.Context) error {
		result, gone = nil, false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invite, err := s.invites.FindByTokenHash(ctx, tx, hash)
			if err != nil {
				return err
			}
			if invite == nil {
				return domain.ErrInviteNotFound
			}
			switch invite.Status {
			case invitedomain.StatusCompleted:
				return domain.ErrAlreadySubmitted
			case invitedomain.StatusExpired:
				return domain.ErrInviteGone
			}

			now := s.clock.Now()
			if invite.Overdue(now) {
				_, _, err := s.machine.Transition(ctx, tx, invite, invitedomain.Transition{To: invitedomain.StatusExpired, At: now})
				if err != nil && !errors.Is(err, invitedomain.ErrInvalidTransition) {
					return err
				}
				gone = true
				return nil
			}

			candidate, err := domain.NewResult(s.genID.Generate(), *invite, cleaned, answers, now)
			if err != nil {
				return err
			}
			resultID := candidate.ID
			_, applied, err := s.machine.Transition(ctx, tx, invite, invitedomain.Transition{
				To:       invitedomain.StatusCompleted,
				At:       now,
				ResultID: &resultID,
			})
			if errors.Is(err, invitedomain.ErrInvalidTransition) {
				return domain.ErrInviteGone
			}
			if err != nil {
				return err
			}
			if !applied {
				return domain.ErrAlreadySubmitted
			}

			if err := s.repo.Insert(ctx, tx, candidate); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrAlreadySubmitted
				}
				return fmt.Errorf("insert result: %w", err)
			}
			if err := s.stats.WithTx(tx).RecordResult(ctx, invite.ID, cleaned, answers); err != nil {
				return err
			}
			result = candidate
			return nil
		})
	})

	switch {
	case err == nil && gone:
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeGone)
		return nil, domain.ErrInviteGone
	case err == nil:
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeRecorded)
		s.metrics.RecordResult(ctx, result.CompanyID.String())
		s.log.Info("assessment result recorded",
			zap.String("company_id", result.CompanyID.String()),
			zap.String("invite_id", result.InviteID.String()),
			zap.String("result_id", result.ID.String()),
		)
		return result, nil
	case errors.Is(err, domain.ErrAlreadySubmitted):
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeDuplicate)
	case errors.Is(err, domain.ErrInviteGone), errors.Is(err, domain.ErrInviteNotFound):
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeGone)
	default:
		s.lifecycle.IncSubmission(metrics.SubmissionOutcomeFailed)
	}
	return nil, err
}

func (s *Service) GetResult(ctx context.Context, companyID, inviteID snowflake.ID) (*domain.Result, error) {
	result, err := s.repo.FindByInvite(ctx, s.db, inviteID)
	if err != nil {
		return nil, err
	}
	if result == nil || result.CompanyID != companyID {
		return nil, domain.ErrResultNotFound
	}
	return result, nil
}
