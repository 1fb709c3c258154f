package contract

import (
	"context"

	"explore-state-be/internal/entity"
	"explore-state-be/internal/repository/specification"

	"github.com/google/uuid"
)

type CorrelationRepository interface {
	Create(ctx context.Context, correlation *entity.Correlation) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Correlation, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Correlation, error)
}
