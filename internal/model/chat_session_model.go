package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VisitorId      string    `gorm:"type:varchar(100);not null;index"` // client-supplied, stable per browser
	Status         string    `gorm:"type:varchar(20);not null;default:'active';index"`
	OperatorChatId *string   `gorm:"type:varchar(100)"`
	SubjectSKU     *string   `gorm:"type:varchar(100)"`
	SubjectTitle   *string   `gorm:"type:text"`
	SubjectPrice   *float64  `gorm:"type:numeric"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
