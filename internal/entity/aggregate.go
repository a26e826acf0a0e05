package entity

import (
	"fmt"
	"time"
)

// Stream types recorded in the event store.
const (
	StreamOrder = "order"
)

// EventStoreRecord represents an event stored in the database.
type EventStoreRecord struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	StreamType string    `json:"stream_type"`
	Version    int       `json:"version"`
	EventType  string    `json:"event_type"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
}

// Event represents a domain event.
type Event interface {
	EventType() string
}

// Aggregate is a stream-backed root whose version counts the events applied to it.
type Aggregate interface {
	GetAggregateID() string
	GetVersion() int
	ApplyEvent(event Event) error
}

// EventDecoder turns a stored record back into its typed event.
type EventDecoder func(rec EventStoreRecord) (Event, error)

// Replay applies records in order. A record for another stream is rejected.
func Replay(agg Aggregate, records []EventStoreRecord, decode EventDecoder) error {
	for _, rec := range records {
		if rec.StreamID != "" && rec.StreamID != agg.GetAggregateID() {
			return fmt.Errorf("event %s belongs to stream %s, not %s", rec.EventType, rec.StreamID, agg.GetAggregateID())
		}
		event, err := decode(rec)
		if err != nil {
			return err
		}
		if err := agg.ApplyEvent(event); err != nil {
			return fmt.Errorf("failed to apply event from stream: %w", err)
		}
	}
	return nil
}

// AggregateBase carries the identity and version shared by aggregates.
type AggregateBase struct {
	ID      string
	Version int
}

func (a *AggregateBase) GetAggregateID() string { return a.ID }

func (a *AggregateBase) GetVersion() int { return a.Version }
