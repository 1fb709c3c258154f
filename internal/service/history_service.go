package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"explore-state-be/internal/dto"
	"explore-state-be/internal/entity"
	"explore-state-be/internal/mapper"
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/internal/repository/specification"
	"explore-state-be/internal/repository/unitofwork"
	"explore-state-be/pkg/events"
	"explore-state-be/pkg/explore/history"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

const historyModule = "HISTORY"

// IHistoryPublisherService queues history entries for asynchronous
// persistence.
type IHistoryPublisherService interface {
	// ForUser returns the remote history store used by one user's sessions.
	ForUser(userId uuid.UUID, orgId int64) history.Store
}

type historyPublisherService struct {
	topicName string
	publisher message.Publisher
}

func NewHistoryPublisherService(topicName string, publisher message.Publisher) IHistoryPublisherService {
	return &historyPublisherService{
		topicName: topicName,
		publisher: publisher,
	}
}

func (s *historyPublisherService) ForUser(userId uuid.UUID, orgId int64) history.Store {
	return &queuedHistoryStore{service: s, userId: userId, orgId: orgId}
}

type queuedHistoryStore struct {
	service *historyPublisherService
	userId  uuid.UUID
	orgId   int64
}

func (q *queuedHistoryStore) AddEntry(ctx context.Context, entry history.Entry) error {
	payload, err := json.Marshal(dto.PublishHistoryMessage{
		UserId:         q.userId,
		OrgId:          q.orgId,
		DatasourceUid:  entry.Datasource.UID,
		DatasourceType: entry.Datasource.Type,
		DatasourceName: entry.DatasourceName,
		Queries:        entry.Queries,
		Starred:        entry.Starred,
		CreatedAt:      entry.Timestamp,
	})
	if err != nil {
		return err
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	return q.service.publisher.Publish(q.service.topicName, msg)
}

type IHistoryConsumerService interface {
	Consume(ctx context.Context) error
}

type historyConsumerService struct {
	subscriber message.Subscriber
	topicName  string
	uowFactory unitofwork.RepositoryFactory
	events     events.Publisher
	retention  time.Duration
	logger     logger.ILogger
}

// NewHistoryConsumerService persists queued entries. events may be nil when
// the event bus is unavailable.
func NewHistoryConsumerService(
	subscriber message.Subscriber,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	eventPublisher events.Publisher,
	retention time.Duration,
	log logger.ILogger,
) IHistoryConsumerService {
	return &historyConsumerService{
		subscriber: subscriber,
		topicName:  topicName,
		uowFactory: uowFactory,
		events:     eventPublisher,
		retention:  retention,
		logger:     log,
	}
}

func (cs *historyConsumerService) Consume(ctx context.Context) error {
	messages, err := cs.subscriber.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()
	return nil
}

func (cs *historyConsumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishHistoryMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error(historyModule, "Failed to unmarshal history message", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Redelivery cannot fix a malformed payload.
		msg.Ack()
		return
	}

	row, err := cs.persist(ctx, payload)
	if err != nil {
		cs.logger.Error(historyModule, "Failed to persist history entry", map[string]interface{}{
			"user_id": payload.UserId,
			"error":   err.Error(),
		})
		msg.Nack()
		return
	}
	msg.Ack()

	if cs.events == nil {
		return
	}
	evt := events.HistoryAdded(payload.UserId.String(), row.Id.String(), row.DatasourceUid, len(payload.Queries), row.CreatedAt)
	if err := cs.events.Publish(ctx, evt); err != nil {
		cs.logger.Warn(historyModule, "Failed to publish history event", map[string]interface{}{
			"history_id": row.Id,
			"error":      err.Error(),
		})
	}
}

func (cs *historyConsumerService) persist(ctx context.Context, payload dto.PublishHistoryMessage) (*entity.QueryHistory, error) {
	queries, err := json.Marshal(payload.Queries)
	if err != nil {
		return nil, err
	}
	row := &entity.QueryHistory{
		Id:             uuid.New(),
		UserId:         payload.UserId,
		OrgId:          payload.OrgId,
		DatasourceUid:  payload.DatasourceUid,
		DatasourceType: payload.DatasourceType,
		DatasourceName: payload.DatasourceName,
		Queries:        queries,
		Starred:        payload.Starred,
		CreatedAt:      payload.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	uow := cs.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.QueryHistoryRepository().Create(ctx, row); err != nil {
		return nil, err
	}
	if cs.retention > 0 {
		pruned, err := uow.QueryHistoryRepository().DeleteUnstarred(ctx,
			specification.UserOwnedBy{UserID: payload.UserId},
			specification.CreatedBefore{Time: row.CreatedAt.Add(-cs.retention)},
		)
		if err != nil {
			return nil, fmt.Errorf("prune history: %w", err)
		}
		if pruned > 0 {
			cs.logger.Debug(historyModule, "Pruned old history entries", map[string]interface{}{
				"user_id": payload.UserId,
				"count":   pruned,
			})
		}
	}
	return row, uow.Commit()
}

type IHistoryService interface {
	List(ctx context.Context, userId uuid.UUID, req *dto.HistoryListRequest) (*dto.HistoryListResponse, error)
	Star(ctx context.Context, userId uuid.UUID, id uuid.UUID, starred bool) error
	Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error
}

type historyService struct {
	uowFactory unitofwork.RepositoryFactory
	mapper     *mapper.ExploreMapper
}

func NewHistoryService(uowFactory unitofwork.RepositoryFactory) IHistoryService {
	return &historyService{
		uowFactory: uowFactory,
		mapper:     mapper.NewExploreMapper(),
	}
}

func (s *historyService) List(ctx context.Context, userId uuid.UUID, req *dto.HistoryListRequest) (*dto.HistoryListResponse, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}

	filters := []specification.Specification{specification.UserOwnedBy{UserID: userId}}
	if req.DatasourceUID != "" {
		filters = append(filters, specification.ByDatasourceUID{UID: req.DatasourceUID})
	}
	if req.Starred {
		filters = append(filters, specification.StarredOnly{})
	}
	if req.Search != "" {
		filters = append(filters, specification.HistorySearch{Query: req.Search})
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	total, err := uow.QueryHistoryRepository().Count(ctx, filters...)
	if err != nil {
		return nil, err
	}
	rows, err := uow.QueryHistoryRepository().FindAll(ctx, append(filters,
		specification.OrderBy{Field: "created_at", Desc: true},
		specification.Pagination{Limit: limit, Offset: (page - 1) * limit},
	)...)
	if err != nil {
		return nil, err
	}

	return &dto.HistoryListResponse{
		Items: s.mapper.ToHistoryResponses(rows),
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (s *historyService) Star(ctx context.Context, userId uuid.UUID, id uuid.UUID, starred bool) error {
	return s.uowFactory.NewUnitOfWork(ctx).QueryHistoryRepository().SetStarred(ctx, id, userId, starred)
}

func (s *historyService) Delete(ctx context.Context, userId uuid.UUID, id uuid.UUID) error {
	return s.uowFactory.NewUnitOfWork(ctx).QueryHistoryRepository().Delete(ctx, id, userId)
}
