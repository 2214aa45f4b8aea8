package mesh

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// TopicRecordChanged carries a RecordChange for every successful write.
const TopicRecordChanged = "grc.record.changed"

type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}

// Op is the kind of write that produced a RecordChange.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
	OpAttest Op = "attest"
)

// RecordChange describes one successful write to a collection.
type RecordChange struct {
	Collection string    `json:"collection"`
	ID         uuid.UUID `json:"id"`
	Op         Op        `json:"op"`
	Actor      uuid.UUID `json:"actor"`
}

// NewRecordChanged wraps c in an event on TopicRecordChanged.
func NewRecordChanged(c RecordChange) (Event, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: TopicRecordChanged, Payload: b, Timestamp: time.Now()}, nil
}

// DecodeRecordChange reads the payload of a TopicRecordChanged event.
func DecodeRecordChange(e Event) (RecordChange, error) {
	var c RecordChange
	err := json.Unmarshal(e.Payload, &c)
	return c, err
}
