package domain

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Publisher interface {
	// WithTx binds the publisher to the caller's transaction.
	WithTx(tx *gorm.DB) Publisher
	Publish(ctx context.Context, in Input) (*Event, error)
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Sink receives relayed events. Delivery is at least once.
type Sink interface {
	Deliver(ctx context.Context, event Event) error
}

var (
	ErrInvalidEvent = errors.New("invalid_event")
)
