package contract

import (
	"context"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/entity"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/specification"
)

// ChatMessageRepository is append-only: messages are never edited or removed
// once persisted.
type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
