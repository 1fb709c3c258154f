package implementation

import (
	"context"

	"explore-state-be/internal/entity"
	"explore-state-be/internal/mapper"
	"explore-state-be/internal/model"
	"explore-state-be/internal/repository/contract"
	"explore-state-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type QueryHistoryRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.QueryHistoryMapper
}

func NewQueryHistoryRepository(db *gorm.DB) contract.QueryHistoryRepository {
	return &QueryHistoryRepositoryImpl{
		db:     db,
		mapper: mapper.NewQueryHistoryMapper(),
	}
}

func (r *QueryHistoryRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *QueryHistoryRepositoryImpl) Create(ctx context.Context, entry *entity.QueryHistory) error {
	m := r.mapper.ToModel(entry)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*entry = *r.mapper.ToEntity(m)
	return nil
}

func (r *QueryHistoryRepositoryImpl) SetStarred(ctx context.Context, id uuid.UUID, userId uuid.UUID, starred bool) error {
	res := r.db.WithContext(ctx).
		Model(&model.QueryHistory{}).
		Where("id = ? AND user_id = ?", id, userId).
		Update("starred", starred)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *QueryHistoryRepositoryImpl) Delete(ctx context.Context, id uuid.UUID, userId uuid.UUID) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userId).Delete(&model.QueryHistory{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *QueryHistoryRepositoryImpl) DeleteUnstarred(ctx context.Context, specs ...specification.Specification) (int64, error) {
	query := r.applySpecifications(r.db.WithContext(ctx), specs...).Where("starred = ?", false)
	res := query.Delete(&model.QueryHistory{})
	return res.RowsAffected, res.Error
}

func (r *QueryHistoryRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.QueryHistory, error) {
	var models []*model.QueryHistory
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *QueryHistoryRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.QueryHistory{}), specs...)
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
