package unitofwork

import (
	"context"

	"explore-state-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	QueryHistoryRepository() contract.QueryHistoryRepository
	CorrelationRepository() contract.CorrelationRepository
}
