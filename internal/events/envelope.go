package events

import (
	"encoding/json"
	"time"
)

// Envelope carries a published frame between nodes.
type Envelope struct {
	Origin     string          `json:"origin"`
	Group      string          `json:"group,omitempty"`
	ExceptUser string          `json:"except_user,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}
