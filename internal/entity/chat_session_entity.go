package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id             uuid.UUID
	VisitorId      string
	Status         string
	OperatorChatId *string // correlation id on the operator channel, set on first reply
	SubjectSKU     *string
	SubjectTitle   *string
	SubjectPrice   *float64 // authoritative price, used for output validation
	CreatedAt      time.Time
	UpdatedAt      *time.Time
}

func (s *ChatSession) IsClosed() bool {
	return s.Status == "closed"
}
