package service

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/assessly/internal/clock"
	"github.com/smallbiznis/assessly/internal/config"
	"github.com/smallbiznis/assessly/internal/events/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// StreamSink appends events to a capped redis stream for the notification worker.
type StreamSink struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewStreamSink(client *redis.Client, stream string, maxLen int64) *StreamSink {
	return &StreamSink{client: client, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Deliver(ctx context.Context, event domain.Event) error {
	return s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":             event.ID,
			"type":           string(event.Type),
			"company_id":     event.CompanyID.String(),
			"aggregate_id":   event.AggregateID.String(),
			"payload":        string(event.Payload),
			"correlation_id": event.CorrelationID,
			"occurred_at":    event.OccurredAt.UnixMilli(),
		},
	}).Err()
}

// LogSink writes events to the log when no stream is configured.
type LogSink struct {
	log *zap.Logger
}

func (s *LogSink) Deliver(_ context.Context, event domain.Event) error {
	s.log.Info("lifecycle event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.String("company_id", event.CompanyID.String()),
		zap.String("aggregate_id", event.AggregateID.String()),
		zap.String("correlation_id", event.CorrelationID),
	)
	return nil
}

type RelayParams struct {
	fx.In

	Publisher domain.Publisher
	Clock     clock.Clock
	Config    config.Config
	Log       *zap.Logger
	Redis     *redis.Client `optional:"true"`
}

// Relay drains the outbox into a Sink in occurrence order.
type Relay struct {
	publisher domain.Publisher
	sink      domain.Sink
	clock     clock.Clock
	batch     int
	log       *zap.Logger
}

func NewRelay(p RelayParams) *Relay {
	log := p.Log.Named("events.relay")
	var sink domain.Sink = &LogSink{log: log}
	if p.Redis != nil && strings.TrimSpace(p.Config.Events.Stream) != "" {
		sink = NewStreamSink(p.Redis, p.Config.Events.Stream, p.Config.Events.StreamMaxLen)
	}
	return NewRelayWithSink(p.Publisher, sink, p.Clock, p.Config.Events.RelayBatch, log)
}

func NewRelayWithSink(publisher domain.Publisher, sink domain.Sink, clk clock.Clock, batch int, log *zap.Logger) *Relay {
	if batch <= 0 {
		batch = 200
	}
	return &Relay{publisher: publisher, sink: sink, clock: clk, batch: batch, log: log}
}

// Dispatch delivers one batch. It stops at the first delivery failure so ordering holds;
// everything delivered before the failure is still marked.
func (r *Relay) Dispatch(ctx context.Context) (int, error) {
	pending, err := r.publisher.ListUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}

	delivered := make([]string, 0, len(pending))
	var deliverErr error
	for _, event := range pending {
		if deliverErr = r.sink.Deliver(ctx, event); deliverErr != nil {
			r.log.Warn("event delivery failed", zap.String("event_id", event.ID), zap.Error(deliverErr))
			break
		}
		delivered = append(delivered, event.ID)
	}

	if err := r.publisher.MarkPublished(ctx, delivered, r.clock.Now()); err != nil {
		return 0, err
	}
	return len(delivered), deliverErr
}
