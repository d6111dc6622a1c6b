package events

import "time"

// Watermill topics for the in-process bus.
const (
	TopicOperatorNotify = "operator.notify"
	TopicChatAnalytics  = "chat.analytics"
)

// Chat event types published for analytics.
const (
	TypeMessageHandled   = "CHAT_MESSAGE_HANDLED"
	TypeSessionEscalated = "CHAT_SESSION_ESCALATED"
	TypeSessionClosed    = "CHAT_SESSION_CLOSED"
	TypeInputBlocked     = "CHAT_INPUT_BLOCKED"
	TypeOutputRejected   = "CHAT_OUTPUT_REJECTED"
)

// Event defines the contract for all system events.
type Event interface {
	// EventType returns the unique code for this event (e.g., "CHAT_SESSION_ESCALATED").
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// BaseEvent is the plain implementation used across the service.
type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func NewChatEvent(eventType, sessionId string, extra map[string]interface{}) BaseEvent {
	data := map[string]interface{}{"session_id": sessionId}
	for k, v := range extra {
		data[k] = v
	}
	return BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}
