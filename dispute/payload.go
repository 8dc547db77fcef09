package dispute

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventPayload is the typed body of an audit event, keyed by event type code.
type EventPayload interface {
	EventType() string
}

// CreatedPayload is recorded when a dispute is raised.
type CreatedPayload struct {
	ReasonCode     string `json:"reason"`
	StatusCode     string `json:"status"`
	TransactionRef string `json:"transactionId"`
	UserID         string `json:"userId"`
}

func (CreatedPayload) EventType() string { return EventCreated }

// StatusUpdatedPayload is recorded on every status change.
type StatusUpdatedPayload struct {
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (StatusUpdatedPayload) EventType() string { return EventStatusUpdated }

// AttributesPayload carries event types this package has no struct for.
type AttributesPayload struct {
	Type       string
	Attributes map[string]any
}

func (p AttributesPayload) EventType() string { return p.Type }

func (p AttributesPayload) MarshalJSON() ([]byte, error) {
	if p.Attributes == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.Attributes)
}

// EncodePayload serialises p for the event_data column.
func EncodePayload(p EventPayload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("dispute: nil event payload")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("dispute: encode %s payload: %w", p.EventType(), err)
	}
	return raw, nil
}

// DecodePayload restores the typed payload stored for eventType.
func DecodePayload(eventType string, raw []byte) (EventPayload, error) {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	switch eventType {
	case EventCreated:
		var p CreatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("dispute: decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventStatusUpdated:
		var p StatusUpdatedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("dispute: decode %s payload: %w", eventType, err)
		}
		return p, nil
	default:
		attrs := map[string]any{}
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, fmt.Errorf("dispute: decode %s payload: %w", eventType, err)
		}
		return AttributesPayload{Type: eventType, Attributes: attrs}, nil
	}
}
