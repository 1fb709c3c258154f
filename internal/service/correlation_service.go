package service

import (
	"context"
	"encoding/json"
	"time"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/entity"
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/internal/repository/specification"
	"explore-state-be/internal/repository/unitofwork"
	"explore-state-be/pkg/events"
	"explore-state-be/pkg/explore/correlation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const correlationModule = "CORRELATION"

type ICorrelationService interface {
	// ForUser returns the saver the correlation editor of one user's
	// sessions calls on "save".
	ForUser(userId uuid.UUID) correlation.Saver
	List(ctx context.Context, userId uuid.UUID, sourceUID string) ([]dto.CorrelationResponse, error)
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type correlationService struct {
	uowFactory unitofwork.RepositoryFactory
	events     events.Publisher
	logger     logger.ILogger
}

func NewCorrelationService(uowFactory unitofwork.RepositoryFactory, eventPublisher events.Publisher, log logger.ILogger) ICorrelationService {
	return &correlationService{
		uowFactory: uowFactory,
		events:     eventPublisher,
		logger:     log,
	}
}

type correlationSaver struct {
	service *correlationService
	userId  uuid.UUID
}

func (s *correlationService) ForUser(userId uuid.UUID) correlation.Saver {
	return &correlationSaver{service: s, userId: userId}
}

func (cs *correlationSaver) SaveCorrelation(ctx context.Context, draft correlation.Draft) error {
	return cs.service.save(ctx, cs.userId, draft)
}

func (s *correlationService) save(ctx context.Context, userId uuid.UUID, draft correlation.Draft) error {
	row := &entity.Correlation{
		Id:          uuid.New(),
		UserId:      userId,
		SourceUid:   draft.SourceUID,
		TargetUid:   draft.TargetUID,
		Label:       draft.Label,
		Description: draft.Description,
		Field:       draft.Field,
		CreatedAt:   time.Now(),
	}
	var err error
	if draft.TargetQuery != nil {
		if row.TargetQuery, err = json.Marshal(draft.TargetQuery); err != nil {
			return err
		}
	}
	if len(draft.Transformations) > 0 {
		if row.Transformations, err = json.Marshal(draft.Transformations); err != nil {
			return err
		}
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.CorrelationRepository().Create(ctx, row); err != nil {
		return err
	}

	s.logger.Info(correlationModule, "Correlation saved", map[string]interface{}{
		"user_id":    userId,
		"source_uid": row.SourceUid,
		"target_uid": row.TargetUid,
	})
	if s.events != nil {
		evt := events.CorrelationSaved(userId.String(), row.Id.String(), row.SourceUid, row.TargetUid, row.Label, row.CreatedAt)
		if err := s.events.Publish(ctx, evt); err != nil {
			s.logger.Warn(correlationModule, "Failed to publish correlation event", map[string]interface{}{"error": err.Error()})
		}
	}
	return nil
}

func (s *correlationService) List(ctx context.Context, userId uuid.UUID, sourceUID string) ([]dto.CorrelationResponse, error) {
	filters := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.OrderBy{Field: "created_at", Desc: true},
	}
	if sourceUID != "" {
		filters = append(filters, specification.BySourceUID{UID: sourceUID})
	}

	rows, err := s.uowFactory.NewUnitOfWork(ctx).CorrelationRepository().FindAll(ctx, filters...)
	if err != nil {
		return nil, err
	}

	res := make([]dto.CorrelationResponse, 0, len(rows))
	for _, row := range rows {
		item := dto.CorrelationResponse{
			Id:          row.Id.String(),
			SourceUid:   row.SourceUid,
			TargetUid:   row.TargetUid,
			Label:       row.Label,
			Description: row.Description,
			Field:       row.Field,
			CreatedAt:   row.CreatedAt,
		}
		if len(row.TargetQuery) > 0 {
			_ = json.Unmarshal(row.TargetQuery, &item.TargetQuery)
		}
		if len(row.Transformations) > 0 {
			_ = json.Unmarshal(row.Transformations, &item.Transformations)
		}
		res = append(res, item)
	}
	return res, nil
}

func (s *correlationService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.CorrelationRepository().FindOne(ctx,
		specification.ByID{ID: id},
		specification.UserOwnedBy{UserID: userId},
	)
	if err != nil {
		return err
	}
	if row == nil {
		return gorm.ErrRecordNotFound
	}
	return uow.CorrelationRepository().Delete(ctx, id)
}
