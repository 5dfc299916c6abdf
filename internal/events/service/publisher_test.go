package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/assessly/internal/events/domain"
	"github.com/smallbiznis/assessly/internal/events/repository"
	"github.com/smallbiznis/assessly/internal/testutil"
	"github.com/smallbiznis/assessly/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPublisher(t *testing.T) (domain.Publisher, *testutil.Env) {
	t.Helper()
	env := testutil.New(t)
	return New(Params{DB: env.DB, Clock: env.Clock, Repo: repository.Provide()}), env
}

func TestPublishWithinTransaction(t *testing.T) {
	pub, env := newPublisher(t)
	ctx := correlation.ContextWithCorrelationID(context.Background(), "corr-1")

	err := env.DB.Transaction(func(tx *gorm.DB) error {
		_, err := pub.WithTx(tx).Publish(ctx, domain.Input{
			CompanyID:   1,
			AggregateID: 2,
			Type:        domain.EventInviteCreated,
			Payload:     map[string]string{"status": "pending"},
		})
		if err != nil {
			return err
		}
		return errors.New("rollback")
	})
	require.Error(t, err)
	assert.Zero(t, env.CountRows(t, "lifecycle_events", ""))

	event, err := pub.Publish(ctx, domain.Input{CompanyID: 1, AggregateID: 2, Type: domain.EventInviteStarted, Payload: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, "corr-1", event.CorrelationID)
	assert.Equal(t, env.Clock.Now(), event.OccurredAt)

	_, err = pub.Publish(ctx, domain.Input{Type: domain.EventInviteStarted})
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestPublishRejectsNonObjectPayload(t *testing.T) {
	pub, env := newPublisher(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		payload interface{}
	}{
		{name: "number", payload: 1},
		{name: "string", payload: "started"},
		{name: "nil", payload: nil},
		{name: "nil map", payload: map[string]string(nil)},
		{name: "array", payload: []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pub.Publish(ctx, domain.Input{CompanyID: 1, AggregateID: 2, Type: domain.EventInviteCreated, Payload: tt.payload})
			assert.ErrorIs(t, err, domain.ErrInvalidEvent)
		})
	}
	assert.Zero(t, env.CountRows(t, "lifecycle_events", ""))

	_, err := pub.Publish(ctx, domain.Input{CompanyID: 1, AggregateID: 2, Type: domain.EventInviteCreated, Payload: relayPayload{Seq: 1}})
	require.NoError(t, err)
	left, err := pub.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.JSONEq(t, `{"seq":1}`, string(left[0].Payload))
}

type relayPayload struct {
	Seq int `json:"seq"`
}

type recordingSink struct {
	seen   []string
	failAt int
}

func (s *recordingSink) Deliver(_ context.Context, event domain.Event) error {
	if s.failAt > 0 && len(s.seen)+1 == s.failAt {
		return errors.New("sink down")
	}
	s.seen = append(s.seen, event.ID)
	return nil
}

func TestRelayStopsAtFirstFailure(t *testing.T) {
	pub, env := newPublisher(t)
	ctx := context.Background()
	for i := 1; i <= 3; i++ {
		env.Clock.Advance(1)
		_, err := pub.Publish(ctx, domain.Input{CompanyID: 1, AggregateID: snowflake.ID(i), Type: domain.EventInviteCreated, Payload: relayPayload{Seq: i}})
		require.NoError(t, err)
	}

	sink := &recordingSink{failAt: 2}
	relay := NewRelayWithSink(pub, sink, env.Clock, 10, zap.NewNop())

	n, err := relay.Dispatch(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, n)

	sink.failAt = 0
	n, err = relay.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	left, err := pub.ListUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
	assert.Len(t, sink.seen, 3)
}
