package contract

import (
	"context"

	"github.com/google/uuid"

	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/entity"
	"github.com/huppermotors-crypto/parts-inventory-sub001/internal/repository/specification"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	Update(ctx context.Context, session *entity.ChatSession) error
	// UpdateStatus is a compare-and-set: the row moves from `from` to `to` only
	// if it is still in `from`. Returns true when the transition happened.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) (bool, error)
	Touch(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
