// Package event defines the live inventory Event that is fanned out to viewers.
package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/PartyLedger/internal/domain"
)

// Type identifies the kind of live event.
type Type string

const (
	TypeItemAdded       Type = "item_added"
	TypeItemUpdated     Type = "item_updated"
	TypeItemRemoved     Type = "item_removed"
	TypeCurrencyUpdated Type = "currency_updated"

	// Transient events: delivered live, never kept for replay.
	TypeConnectionCount Type = "connection_count"
	TypeHeartbeat       Type = "heartbeat"
)

// domainTypes are the event types producers are allowed to publish.
var domainTypes = map[Type]bool{
	TypeItemAdded:       true,
	TypeItemUpdated:     true,
	TypeItemRemoved:     true,
	TypeCurrencyUpdated: true,
}

// Domain reports whether t is an inventory mutation event.
func (t Type) Domain() bool { return domainTypes[t] }

// Replayable reports whether events of this type are kept in the replay buffer.
func (t Type) Replayable() bool {
	return t != TypeConnectionCount && t != TypeHeartbeat
}

// ParseDomainType validates a producer-supplied event type.
func ParseDomainType(s string) (Type, error) {
	t := Type(s)
	if !t.Domain() {
		return "", fmt.Errorf("%w: unsupported event type %q", domain.ErrValidation, s)
	}
	return t, nil
}

// Event is a single immutable live notification. Events are shared by every
// subscription of a topic, so Data must not be modified after New returns.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
}

// New creates an event with a fresh time-ordered ID. The payload must encode
// to a JSON object; nil encodes as {}.
func New(t Type, payload any) (Event, error) {
	if t == "" {
		return Event{}, fmt.Errorf("%w: event type is required", domain.ErrValidation)
	}
	data, err := encodePayload(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        newID(),
		Type:      t,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ConnectionCount builds the viewer-count notification.
func ConnectionCount(viewers int) Event {
	ev, _ := New(TypeConnectionCount, map[string]int{"viewers": viewers})
	return ev
}

// Heartbeat builds a keep-alive event stamped with now.
func Heartbeat(now time.Time) Event {
	ev, _ := New(TypeHeartbeat, map[string]string{"timestamp": FormatTime(now)})
	return ev
}

// ValidatePayload reports whether payload is acceptable as event data.
func ValidatePayload(payload any) error {
	_, err := encodePayload(payload)
	return err
}

func encodePayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return json.RawMessage(`{}`), nil
	}
	if raw, ok := payload.(json.RawMessage); ok {
		payload = append(json.RawMessage(nil), raw...)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal event payload: %w", err)
	}
	switch {
	case string(data) == "null":
		return json.RawMessage(`{}`), nil
	case data[0] != '{':
		return nil, fmt.Errorf("%w: event payload must be a JSON object", domain.ErrValidation)
	}
	return data, nil
}

func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
