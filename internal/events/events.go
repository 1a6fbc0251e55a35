// Package events decouples the API surface from the queue: services emit
// generation requests without knowing which queue or job name serves
// them, and the queue-backed handler does the translation.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Generation request event types.
const (
	TypeAvatarRequested      = "avatar.requested"
	TypeAudioRequested       = "audio.requested"
	TypePageImageRequested   = "page_image.requested"
	TypePostRequested        = "post.requested"
	TypeSuggestionsRequested = "suggestions.requested"
)

// GenerationRequestEvent asks the background system to produce something.
// The payload shape depends on the event type.
type GenerationRequestEvent struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *GenerationRequestEvent) UnmarshalPayload(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}

// NewGenerationRequestEvent creates an event with the given type and payload.
func NewGenerationRequestEvent(eventType string, payload interface{}) (*GenerationRequestEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &GenerationRequestEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler processes emitted events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *GenerationRequestEvent) error
}

// EventEmitter publishes events to registered handlers.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *GenerationRequestEvent) error
}
