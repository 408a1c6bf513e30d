package events

import (
	"context"
	"time"
)

type Type string

const (
	OrderFilled   Type = "order.filled"
	LedgerSettled Type = "ledger.settled"
)

// Event is one ledger notification. Key is used for partitioning, usually
// the instrument code.
type Event struct {
	Type       Type      `json:"type"`
	Key        string    `json:"key"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// Publisher delivers events after the ledger has committed them.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
