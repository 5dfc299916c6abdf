package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/config"
	eventsdomain "github.com/smallbiznis/assessly/internal/events/domain"
	"github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/invite/token"
	licensedomain "github.com/smallbiznis/assessly/internal/license/domain"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	projectdomain "github.com/smallbiznis/assessly/internal/project/domain"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"github.com/smallbiznis/assessly/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// tokenAttempts bounds regeneration after a token hash collision.
const tokenAttempts = 2

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        domain.Repository
	ProjectRepo projectdomain.Repository
	Licenses    licensedomain.Manager
	Stats       statsdomain.Aggregator
	Events      eventsdomain.Publisher
	Machine     *StateMachine
	Retry       db.RetryConfig
	Settings    *config.AssessmentConfigHolder `optional:"true"`
	Metrics     *metrics.Metrics               `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	repo        domain.Repository
	projectRepo projectdomain.Repository
	licenses    licensedomain.Manager
	stats       statsdomain.Aggregator
	events      eventsdomain.Publisher
	machine     *StateMachine
	retry       db.RetryConfig
	settings    *config.AssessmentConfigHolder
	metrics     *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invite.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		repo:        p.Repo,
		projectRepo: p.ProjectRepo,
		licenses:    p.Licenses,
		stats:       p.Stats,
		events:      p.Events,
		machine:     p.Machine,
		retry:       p.Retry,
		settings:    p.Settings,
		metrics:     p.Metrics,
	}
}

type createdPayload struct {
	InviteID       snowflake.ID `json:"invite_id"`
	ProjectID      snowflake.ID `json:"project_id"`
	CandidateEmail string       `json:"candidate_email"`
	ExpiresAt      time.Time    `json:"expires_at"`
}

// CreateInvite reserves a seat and then writes the invite. The reservation is released
// when anything after it fails.
func (s *Service) CreateInvite(ctx context.Context, req domain.CreateInviteRequest) (domain.CreateInviteResponse, error) {
	email, err := domain.NormalizeEmail(req.CandidateEmail)
	if err != nil {
		return domain.CreateInviteResponse{}, err
	}

	reservation, err := s.licenses.TryReserveSeat(ctx, req.CompanyID)
	if err != nil {
		return domain.CreateInviteResponse{}, err
	}

	resp, err := s.createReserved(ctx, req, email, reservation.ID)
	if err == nil {
		s.metrics.RecordInviteIssued(ctx, req.CompanyID.String())
		s.log.Info("invite created",
			zap.String("company_id", req.CompanyID.String()),
			zap.String("project_id", req.ProjectID.String()),
			zap.String("invite_id", resp.InviteID.String()),
		)
		return resp, nil
	}

	releaseErr := s.licenses.Release(context.WithoutCancel(ctx), reservation.ID)
	switch {
	case releaseErr == nil:
	case errors.Is(releaseErr, licensedomain.ErrReservationConsumed) && resp.InviteID != 0:
		// The commit landed even though the caller saw an error.
		s.log.Info("invite committed despite error", zap.String("invite_id", resp.InviteID.String()), zap.Error(err))
		return resp, nil
	default:
		s.log.Error("release reservation after failed create",
			zap.String("reservation_id", reservation.ID.String()),
			zap.NamedError("cause", err),
			zap.Error(releaseErr),
		)
	}
	return domain.CreateInviteResponse{}, err
}

func (s *Service) createReserved(ctx context.Context, req domain.CreateInviteRequest, email string, reservationID snowflake.ID) (domain.CreateInviteResponse, error) {
	project, err := s.projectRepo.FindByID(ctx, s.db, req.CompanyID, req.ProjectID)
	if err != nil {
		return domain.CreateInviteResponse{}, err
	}
	if project == nil {
		return domain.CreateInviteResponse{}, domain.ErrProjectNotFound
	}
	if !project.Active() {
		return domain.CreateInviteResponse{}, domain.ErrProjectArchived
	}

	ttl := s.settings.Get().Invites.TTL
	var resp domain.CreateInviteResponse
	for attempt := 1; ; attempt++ {
		raw, err := token.Generate()
		if err != nil {
			return domain.CreateInviteResponse{}, fmt.Errorf("generate token: %w", err)
		}
		invite, err := domain.NewInvite(s.genID.Generate(), req.CompanyID, req.ProjectID, email, token.Hash(raw), s.clock.Now(), ttl)
		if err != nil {
			return domain.CreateInviteResponse{}, err
		}
		resp = domain.CreateInviteResponse{
			InviteID:  invite.ID,
			Token:     raw,
			Status:    invite.Status,
			ExpiresAt: invite.ExpiresAt,
		}

		err = s.insert(ctx, invite, reservationID)
		if err == nil {
			return resp, nil
		}
		if db.IsDuplicateKeyErr(err) && attempt < tokenAttempts {
			s.log.Warn("invite token collision, regenerating")
			continue
		}
		return resp, fmt.Errorf("create invite: %w", err)
	}
}

func (s *Service) insert(ctx context.Context, invite *domain.Invite, reservationID snowflake.ID) error {
	attemptCtx, cancel := db.WithTimeout(ctx, s.retry)
	defer cancel()

	return s.db.WithContext(attemptCtx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.Insert(attemptCtx, tx, invite); err != nil {
			return err
		}
		if err := s.licenses.Consume(attemptCtx, tx, reservationID, invite.ID); err != nil {
			return err
		}
		if err := s.stats.WithTx(tx).OnInviteCreated(attemptCtx, *invite); err != nil {
			return err
		}
		_, err := s.events.WithTx(tx).Publish(attemptCtx, eventsdomain.Input{
			CompanyID:   invite.CompanyID,
			AggregateID: invite.ID,
			Type:        eventsdomain.EventInviteCreated,
			Payload: createdPayload{
				InviteID:       invite.ID,
				ProjectID:      invite.ProjectID,
				CandidateEmail: invite.CandidateEmail,
				ExpiresAt:      invite.ExpiresAt,
			},
			OccurredAt: invite.SentAt,
		})
		return err
	})
}

// Open starts the assessment on first use. Later opens only refresh last_opened_at.
func (s *Service) Open(ctx context.Context, raw string) (domain.OpenResponse, error) {
	hash, err := hashToken(raw)
	if err != nil {
		return domain.OpenResponse{}, err
	}

	var (
		out  domain.OpenResponse
		gone bool
	)
	err = db.Retry(ctx, s.retry, func(ctx context.Context) error {
		gone = false
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invite, err := s.repo.FindByTokenHash(ctx, tx, hash)
			if err != nil {
				return err
			}
			if invite == nil {
				return domain.ErrInviteNotFound
			}
			if invite.Status.Terminal() {
				return domain.ErrInviteGone
			}

			now := s.clock.Now()
			if invite.Overdue(now) {
				if _, _, err := s.machine.Transition(ctx, tx, invite, domain.Transition{To: domain.StatusExpired, At: now}); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
					return err
				}
				gone = true
				return nil
			}

			opened, err := s.markOpened(ctx, tx, invite, now)
			if err != nil {
				return err
			}
			out = domain.OpenResponse{
				CandidateEmail: opened.CandidateEmail,
				ProjectID:      opened.ProjectID,
				CompanyID:      opened.CompanyID,
				Status:         opened.Status,
				ExpiresAt:      opened.ExpiresAt,
			}
			return nil
		})
	})
	if err != nil {
		return domain.OpenResponse{}, err
	}
	if gone {
		return domain.OpenResponse{}, domain.ErrInviteGone
	}
	return out, nil
}

func (s *Service) markOpened(ctx context.Context, tx *gorm.DB, invite *domain.Invite, now time.Time) (*domain.Invite, error) {
	if invite.Status == domain.StatusPending {
		next, applied, err := s.machine.Transition(ctx, tx, invite, domain.Transition{To: domain.StatusStarted, At: now})
		if errors.Is(err, domain.ErrInvalidTransition) {
			return nil, domain.ErrInviteGone
		}
		if err != nil {
			return nil, err
		}
		if applied {
			return next, nil
		}
		invite = next
	}

	if err := s.repo.TouchOpened(ctx, tx, invite.ID, now); err != nil {
		return nil, err
	}
	if err := s.stats.WithTx(tx).TouchOpened(ctx, invite.ID, now); err != nil {
		return nil, err
	}
	touched := *invite
	touched.LastOpenedAt = &now
	return &touched, nil
}

// Validate reports whether the token can still be used, without changing anything.
func (s *Service) Validate(ctx context.Context, raw string) (domain.ValidateResponse, error) {
	hash, err := hashToken(raw)
	if err != nil {
		return domain.ValidateResponse{}, nil
	}

	readCtx, cancel := db.WithTimeout(ctx, s.retry)
	defer cancel()

	invite, err := s.repo.FindByTokenHash(readCtx, s.db, hash)
	if err != nil {
		return domain.ValidateResponse{}, err
	}
	if invite == nil {
		return domain.ValidateResponse{}, nil
	}

	status := invite.EffectiveStatus(s.clock.Now())
	expiresAt := invite.ExpiresAt
	return domain.ValidateResponse{
		Valid:     status == domain.StatusPending || status == domain.StatusStarted,
		Status:    status,
		ProjectID: invite.ProjectID,
		ExpiresAt: &expiresAt,
	}, nil
}

// ExpireDue moves up to limit overdue invites to expired and reports how many it moved.
func (s *Service) ExpireDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := s.repo.ListDue(ctx, s.db, now, limit)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		invite := due[i]

		var applied bool
		err := db.Retry(ctx, s.retry, func(ctx context.Context) error {
			return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				var err error
				_, applied, err = s.machine.Transition(ctx, tx, &invite, domain.Transition{To: domain.StatusExpired, At: now})
				if errors.Is(err, domain.ErrInvalidTransition) {
					applied = false
					return nil
				}
				return err
			})
		})
		if err != nil {
			return expired, fmt.Errorf("expire invite %s: %w", invite.ID, err)
		}
		if applied {
			expired++
		}
	}
	return expired, nil
}

func (s *Service) Get(ctx context.Context, companyID, inviteID snowflake.ID) (domain.Invite, error) {
	invite, err := s.repo.FindByCompany(ctx, s.db, companyID, inviteID)
	if err != nil {
		return domain.Invite{}, err
	}
	if invite == nil {
		return domain.Invite{}, domain.ErrInviteNotFound
	}
	return *invite, nil
}

func (s *Service) ListByProject(ctx context.Context, companyID, projectID snowflake.ID) ([]domain.Invite, error) {
	project, err := s.projectRepo.FindByID(ctx, s.db, companyID, projectID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, domain.ErrProjectNotFound
	}
	return s.repo.ListByProject(ctx, s.db, companyID, projectID)
}

func hashToken(raw string) (string, error) {
	normalized, err := token.Normalize(raw)
	if err != nil {
		return "", domain.ErrInviteNotFound
	}
	return token.Hash(normalized), nil
}
