package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/events/domain"
	"github.com/smallbiznis/assessly/internal/events/repository"
	"github.com/smallbiznis/assessly/internal/observability/metrics"
	"github.com/smallbiznis/assessly/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Clock   clock.Clock
	Repo    repository.Repository
	Metrics *metrics.Metrics `optional:"true"`
}

type Publisher struct {
	db      *gorm.DB
	clock   clock.Clock
	repo    repository.Repository
	metrics *metrics.Metrics
}

func New(p Params) domain.Publisher {
	return &Publisher{
		db:      p.DB,
		clock:   p.Clock,
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (p *Publisher) WithTx(tx *gorm.DB) domain.Publisher {
	if tx == nil {
		return p
	}
	next := *p
	next.db = tx
	return &next
}

func (p *Publisher) Publish(ctx context.Context, in domain.Input) (*domain.Event, error) {
	if in.Type == "" || in.CompanyID == 0 || in.AggregateID == 0 {
		return nil, domain.ErrInvalidEvent
	}
	payload, err := json.Marshal(in.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", in.Type, err)
	}
	if !isObject(payload) {
		return nil, fmt.Errorf("%w: %s payload must be a JSON object", domain.ErrInvalidEvent, in.Type)
	}

	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = p.clock.Now()
	}
	meta := correlation.Metadata(ctx)
	event := &domain.Event{
		ID:            ulid.Make().String(),
		CompanyID:     in.CompanyID,
		AggregateID:   in.AggregateID,
		Type:          in.Type,
		Payload:       datatypes.JSON(payload),
		CorrelationID: meta["correlation_id"],
		TraceID:       meta["trace_id"],
		OccurredAt:    occurredAt.UTC(),
	}
	if err := p.repo.Insert(ctx, p.db, event); err != nil {
		return nil, fmt.Errorf("append %s: %w", in.Type, err)
	}
	p.metrics.RecordEvent(ctx, string(in.Type))
	return event, nil
}

func (p *Publisher) ListUnpublished(ctx context.Context, limit int) ([]domain.Event, error) {
	return p.repo.ListUnpublished(ctx, p.db, limit)
}

func (p *Publisher) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	return p.repo.MarkPublished(ctx, p.db, ids, at)
}

func isObject(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	return len(trimmed) > 0 && trimmed[0] == '{'
}
