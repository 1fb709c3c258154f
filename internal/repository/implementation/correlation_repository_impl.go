package implementation

import (
	"context"
	"errors"

	"explore-state-be/internal/entity"
	"explore-state-be/internal/mapper"
	"explore-state-be/internal/model"
	"explore-state-be/internal/repository/contract"
	"explore-state-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CorrelationRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.CorrelationMapper
}

func NewCorrelationRepository(db *gorm.DB) contract.CorrelationRepository {
	return &CorrelationRepositoryImpl{
		db:     db,
		mapper: mapper.NewCorrelationMapper(),
	}
}

func (r *CorrelationRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *CorrelationRepositoryImpl) Create(ctx context.Context, correlation *entity.Correlation) error {
	m := r.mapper.ToModel(correlation)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*correlation = *r.mapper.ToEntity(m)
	return nil
}

func (r *CorrelationRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Correlation{}).Error
}

func (r *CorrelationRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Correlation, error) {
	var m model.Correlation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *CorrelationRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Correlation, error) {
	var models []*model.Correlation
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}
