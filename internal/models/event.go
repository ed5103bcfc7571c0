package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMalformedEvent marks messages that can never be processed and must not be redelivered.
var ErrMalformedEvent = errors.New("malformed event")

type EventType string

const (
	EventOrderChanged EventType = "order.changed"
	EventUserCreated  EventType = "user.created"
)

// ChangeKind is derived from which order snapshots an event carries.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeDeleted ChangeKind = "deleted"
)

// OrderChange is a single write to an order record: Before is nil on
// creation, After is nil on deletion.
type OrderChange struct {
	EventID  string
	Before   *Order
	After    *Order
	Warnings []string
}

func (c OrderChange) Kind() ChangeKind {
	switch {
	case c.Before == nil:
		return ChangeCreated
	case c.After == nil:
		return ChangeDeleted
	default:
		return ChangeUpdated
	}
}

func (c OrderChange) OrderID() string {
	if c.After != nil {
		return c.After.ID
	}
	if c.Before != nil {
		return c.Before.ID
	}
	return ""
}

type UserCreated struct {
	EventID string
	UserID  string
}

// Event is a decoded queue message. Exactly one of Order and User is set.
type Event struct {
	ID         string
	Type       EventType
	OccurredAt time.Time
	Order      *OrderChange
	User       *UserCreated
}

type eventEnvelope struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	UserID     string          `json:"userId,omitempty"`
}

// EncodeOrderChange builds the queue message for a committed order write.
func EncodeOrderChange(eventID string, before, after *Order, occurredAt time.Time) ([]byte, error) {
	envelope := eventEnvelope{ID: eventID, Type: EventOrderChanged, OccurredAt: occurredAt}

	if before != nil {
		data, err := json.Marshal(before)
		if err != nil {
			return nil, fmt.Errorf("failed to encode order snapshot: %w", err)
		}
		envelope.Before = data
	}

	if after != nil {
		data, err := json.Marshal(after)
		if err != nil {
			return nil, fmt.Errorf("failed to encode order snapshot: %w", err)
		}
		envelope.After = data
	}

	return json.Marshal(envelope)
}

func EncodeUserCreated(eventID, userID string, occurredAt time.Time) ([]byte, error) {
	return json.Marshal(eventEnvelope{
		ID:         eventID,
		Type:       EventUserCreated,
		OccurredAt: occurredAt,
		UserID:     userID,
	})
}

// DecodeEvent parses a queue message. Errors wrap ErrMalformedEvent.
func DecodeEvent(body []byte) (*Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedEvent, err)
	}

	event := &Event{ID: envelope.ID, Type: envelope.Type, OccurredAt: envelope.OccurredAt}

	switch envelope.Type {
	case EventOrderChanged:
		change := &OrderChange{EventID: envelope.ID}

		if !isAbsent(envelope.Before) {
			order, warnings, err := DecodeOrder(envelope.Before)
			if err != nil {
				return nil, err
			}
			change.Before = order
			change.Warnings = append(change.Warnings, warnings...)
		}

		if !isAbsent(envelope.After) {
			order, warnings, err := DecodeOrder(envelope.After)
			if err != nil {
				return nil, err
			}
			change.After = order
			change.Warnings = append(change.Warnings, warnings...)
		}

		if change.Before == nil && change.After == nil {
			return nil, fmt.Errorf("%w: order event %q carries no snapshot", ErrMalformedEvent, envelope.ID)
		}

		event.Order = change
	case EventUserCreated:
		if envelope.UserID == "" {
			return nil, fmt.Errorf("%w: user event %q has no user id", ErrMalformedEvent, envelope.ID)
		}
		event.User = &UserCreated{EventID: envelope.ID, UserID: envelope.UserID}
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrMalformedEvent, envelope.Type)
	}

	return event, nil
}
