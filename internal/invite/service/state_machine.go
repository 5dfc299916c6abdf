package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	eventsdomain "github.com/smallbiznis/assessly/internal/events/domain"
	"github.com/smallbiznis/assessly/internal/invite/domain"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	statsdomain "github.com/smallbiznis/assessly/internal/stats/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxTransitionAttempts = 3

var eventFor = map[domain.Status]eventsdomain.EventType{
	domain.StatusStarted:   eventsdomain.EventInviteStarted,
	domain.StatusCompleted: eventsdomain.EventInviteCompleted,
	domain.StatusExpired:   eventsdomain.EventInviteExpired,
}

type transitionPayload struct {
	InviteID  snowflake.ID  `json:"invite_id"`
	ProjectID snowflake.ID  `json:"project_id"`
	From      domain.Status `json:"from"`
	To        domain.Status `json:"to"`
	ResultID  *snowflake.ID `json:"result_id,omitempty"`
}

type StateMachineParams struct {
	fx.In

	Log     *zap.Logger
	Repo    domain.Repository
	Stats   statsdomain.Aggregator
	Events  eventsdomain.Publisher
	Metrics *metrics.LifecycleMetrics `optional:"true"`
}

// StateMachine is the only writer of invite status.
type StateMachine struct {
	log     *zap.Logger
	repo    domain.Repository
	stats   statsdomain.Aggregator
	events  eventsdomain.Publisher
	metrics *metrics.LifecycleMetrics
}

func NewStateMachine(p StateMachineParams) *StateMachine {
	return &StateMachine{
		log:     p.Log.Named("invite.state"),
		repo:    p.Repo,
		stats:   p.Stats,
		events:  p.Events,
		metrics: p.Metrics,
	}
}

// AsTransitioner exposes the state machine to packages that complete invites.
func AsTransitioner(m *StateMachine) domain.Transitioner {
	return m
}

// Transition writes t conditionally on the status observed in invite. When another writer
// got there first the invite is re-read and the move re-evaluated against the table.
func (m *StateMachine) Transition(ctx context.Context, tx *gorm.DB, invite *domain.Invite, t domain.Transition) (*domain.Invite, bool, error) {
	if invite == nil {
		return nil, false, domain.ErrInviteNotFound
	}
	if t.To == domain.StatusCompleted && t.ResultID == nil {
		return invite, false, fmt.Errorf("%w: completion requires a result", domain.ErrInvalidTransition)
	}

	current := invite
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		if current.Status == t.To {
			return current, false, nil
		}
		if !current.Status.CanTransition(t.To) {
			return current, false, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, t.To)
		}

		next := current.Apply(t)
		rows, err := m.repo.CompareAndSet(ctx, tx, &next, current.Status)
		if err != nil {
			return current, false, fmt.Errorf("write %s: %w", t.To, err)
		}
		if rows == 1 {
			if err := m.afterTransition(ctx, tx, current.Status, next); err != nil {
				return current, false, err
			}
			return &next, true, nil
		}

		reread, err := m.repo.FindByID(ctx, tx, current.ID)
		if err != nil {
			return current, false, err
		}
		if reread == nil {
			return current, false, domain.ErrInviteNotFound
		}
		m.log.Debug("transition precondition lost",
			zap.String("invite_id", current.ID.String()),
			zap.String("expected", current.Status.String()),
			zap.String("observed", reread.Status.String()),
			zap.Int("attempt", attempt+1),
		)
		current = reread
	}
	return current, false, domain.ErrTransitionLost
}

func (m *StateMachine) afterTransition(ctx context.Context, tx *gorm.DB, from domain.Status, next domain.Invite) error {
	if _, err := m.stats.WithTx(tx).OnInviteTransition(ctx, next, from, next.Status); err != nil {
		return err
	}
	_, err := m.events.WithTx(tx).Publish(ctx, eventsdomain.Input{
		CompanyID:   next.CompanyID,
		AggregateID: next.ID,
		Type:        eventFor[next.Status],
		Payload: transitionPayload{
			InviteID:  next.ID,
			ProjectID: next.ProjectID,
			From:      from,
			To:        next.Status,
			ResultID:  next.ResultID,
		},
		OccurredAt: next.UpdatedAt,
	})
	if err != nil {
		return err
	}
	m.metrics.IncTransition(from.String(), next.Status.String())
	return nil
}
