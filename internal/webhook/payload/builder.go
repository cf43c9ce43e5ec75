package payload

import (
	"context"
	"encoding/json"
)

// PayloadBuilder interface for building event-specific payloads
type PayloadBuilder interface {
	BuildPayload(ctx context.Context, eventType string, data json.RawMessage) (json.RawMessage, error)
}

// Envelope is the body every webhook receiver gets
type Envelope struct {
	EventID   string      `json:"event_id"`
	EventType string      `json:"event_type"`
	Timestamp string      `json:"timestamp"`
	Data      interface{} `json:"data"`
}
