package contract

import (
	"context"

	"explore-state-be/internal/entity"
	"explore-state-be/internal/repository/specification"

	"github.com/google/uuid"
)

type QueryHistoryRepository interface {
	Create(ctx context.Context, entry *entity.QueryHistory) error
	SetStarred(ctx context.Context, id uuid.UUID, userId uuid.UUID, starred bool) error
	Delete(ctx context.Context, id uuid.UUID, userId uuid.UUID) error
	// DeleteUnstarred removes unstarred entries matching specs and returns how many went.
	DeleteUnstarred(ctx context.Context, specs ...specification.Specification) (int64, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QueryHistory, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
