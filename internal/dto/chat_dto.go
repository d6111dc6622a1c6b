package dto

import (
	"time"

	"github.com/google/uuid"
)

// SubjectContextDTO carries the product the visitor is asking about. The
// price is the authoritative one and is used to validate model output.
type SubjectContextDTO struct {
	SKU   string  `json:"sku,omitempty"`
	Title string  `json:"title" validate:"required,max=300"`
	Price float64 `json:"price" validate:"gte=0"`
}

type SendMessageRequest struct {
	SessionId      *uuid.UUID         `json:"sessionId,omitempty"`
	VisitorId      string             `json:"visitorId" validate:"required,max=100"`
	Message        string             `json:"message" validate:"required"`
	SubjectContext *SubjectContextDTO `json:"subjectContext,omitempty"`
}

type MessageDTO struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply is nil when the session is escalated: the operator's answer arrives
// later through polling.
type SendMessageResponse struct {
	SessionId uuid.UUID   `json:"sessionId"`
	Reply     *MessageDTO `json:"reply"`
}

type PollMessagesResponse struct {
	SessionId uuid.UUID     `json:"sessionId"`
	Status    string        `json:"status"`
	Messages  []*MessageDTO `json:"messages"`
}

type EndSessionRequest struct {
	SessionId uuid.UUID `json:"sessionId" validate:"required"`
	VisitorId string    `json:"visitorId" validate:"required,max=100"`
}
