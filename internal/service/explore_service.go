package service

import (
	"context"

	"explore-state-be/internal/config"
	"explore-state-be/internal/dto"
	"explore-state-be/internal/mapper"
	"explore-state-be/internal/pkg/logger"
	"explore-state-be/internal/repository/memory"
	"explore-state-be/pkg/events"
	"explore-state-be/pkg/explore/correlation"
	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/history"
	"explore-state-be/pkg/explore/model"
	"explore-state-be/pkg/explore/orchestrator"
	"explore-state-be/pkg/explore/pipeline"
	"explore-state-be/pkg/explore/preferences"
	"explore-state-be/pkg/explore/session"

	"github.com/coder/quartz"
	"github.com/google/uuid"
)

const exploreModule = "EXPLORE"

type IExploreService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error)
	CloseSession(ctx context.Context, userId uuid.UUID, sessionId string) error
	Navigate(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.NavigateRequest) (*dto.SessionResponse, error)
	Back(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error)
	Forward(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error)

	SplitOpen(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.SplitOpenRequest) (*dto.SplitOpenResponse, error)
	ClosePane(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.CommandResponse, error)
	Maximize(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.PaneRefRequest) (*dto.SessionResponse, error)
	EvenResize(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error)
	ToggleSyncTimes(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.PaneRefRequest) (*dto.SessionResponse, error)

	ChangeRange(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeRangeRequest) (*dto.SessionResponse, error)
	ChangeQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeQueriesRequest) (*dto.SessionResponse, error)
	AddQueryRow(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.AddQueryRowRequest) (*dto.AddQueryRowResponse, error)
	RunQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error)
	CancelQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error)
	ChangeDatasource(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeDatasourceRequest) (*dto.CommandResponse, error)
	ChangeRefreshInterval(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeRefreshRequest) (*dto.SessionResponse, error)
	SetSupplementaryEnabled(ctx context.Context, userId uuid.UUID, sessionId, paneKey, queryType string, req *dto.SupplementaryToggleRequest) (*dto.SessionResponse, error)
	ChangePanelsState(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.PanelsStateRequest) (*dto.SessionResponse, error)
	ScanStart(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error)
	ScanStop(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error)
	ClearLogs(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error)
	ShiftTime(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ShiftTimeRequest) (*dto.SessionResponse, error)
	ZoomOut(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ZoomOutRequest) (*dto.SessionResponse, error)

	StartCorrelation(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.StartCorrelationRequest) (*dto.SessionResponse, error)
	SetCorrelationDirty(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CorrelationDirtyRequest) (*dto.SessionResponse, error)
	ExitCorrelationEditor(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.CommandResponse, error)
	ResolveCorrelation(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.ResolveCorrelationRequest) (*dto.SessionResponse, error)

	// LocalHistory returns the queries run in this session, most recent
	// first.
	LocalHistory(ctx context.Context, userId uuid.UUID, sessionId string) ([]history.Entry, error)
	// Session returns the live session for the stream handler.
	Session(userId uuid.UUID, sessionId string) (*session.Session, error)
}

// PreferenceProvider hands out the preference store of a user.
type PreferenceProvider interface {
	ForUser(userId uuid.UUID) preferences.Store
}

// ExploreDependencies are the collaborators shared by every session. History
// and Correlations may be nil when persistence is unavailable; Events may be
// nil when the event bus is.
type ExploreDependencies struct {
	Sessions     *memory.SessionRepository
	Registry     datasource.Registry
	Preferences  PreferenceProvider
	History      IHistoryPublisherService
	Correlations ICorrelationService
	Stream       IExploreStreamService
	Events       events.Publisher
	Metrics      *pipeline.Metrics
	Clock        quartz.Clock
	Logger       logger.ILogger
}

type exploreService struct {
	deps   ExploreDependencies
	cfg    config.ExploreConfig
	mapper *mapper.ExploreMapper
}

func NewExploreService(deps ExploreDependencies, cfg config.ExploreConfig) IExploreService {
	if deps.Clock == nil {
		deps.Clock = quartz.NewReal()
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNopLogger()
	}
	if deps.Preferences == nil {
		deps.Preferences = memory.NewPreferenceRepository()
	}
	return &exploreService{
		deps:   deps,
		cfg:    cfg,
		mapper: mapper.NewExploreMapper(),
	}
}

func (s *exploreService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	var remote history.Store
	if s.cfg.RemoteHistory && s.deps.History != nil {
		remote = s.deps.History.ForUser(userId, req.OrgID)
	}
	var saver correlation.Saver
	if s.deps.Correlations != nil {
		saver = s.deps.Correlations.ForUser(userId)
	}

	sess, err := session.Open(ctx, session.Options{
		UserID:     userId.String(),
		InitialURL: req.URL,
		Debounce:   s.cfg.URLDebounce,
		Orchestrator: orchestrator.Config{
			Pipeline:        pipeline.Config{LiveThrottle: s.cfg.LiveThrottle},
			DefaultRange:    model.RawTimeRange{From: s.cfg.DefaultRangeFrom, To: s.cfg.DefaultRangeTo},
			DefaultTimezone: s.cfg.DefaultTimezone,
			OrgID:           req.OrgID,
		},
		Dependencies: orchestrator.Dependencies{
			Registry:    s.deps.Registry,
			History:     history.NewRecorder(history.NewLocal(s.cfg.HistorySize), remote, s.deps.Logger),
			Preferences: s.deps.Preferences.ForUser(userId),
			Saver:       saver,
			Clock:       s.deps.Clock,
			Logger:      s.deps.Logger,
			Metrics:     s.deps.Metrics,
		},
	})
	if err != nil {
		// The session is usable; broken panes fell back to defaults.
		s.deps.Logger.Warn(exploreModule, "Initial address bar applied with errors", map[string]interface{}{
			"session": sess.ID,
			"error":   err.Error(),
		})
	}

	if len(sess.Orchestrator.PaneKeys()) == 0 {
		if err := sess.Orchestrator.InitializePane(ctx, newPaneKey(), orchestrator.PaneInit{}); err != nil {
			sess.Close()
			return nil, err
		}
	}

	if s.deps.Stream != nil {
		s.deps.Stream.Attach(sess)
	}
	sess.OnClose(func() { s.sessionClosed(sess) })
	s.deps.Sessions.Save(sess)

	return s.mapper.ToSessionResponse(sess), nil
}

func newPaneKey() string {
	return uuid.NewString()[:3]
}

func (s *exploreService) sessionClosed(sess *session.Session) {
	s.deps.Logger.Info(exploreModule, "Explore session closed", map[string]interface{}{
		"session": sess.ID,
		"user":    sess.UserID,
	})
	if s.deps.Events == nil {
		return
	}
	evt := events.SessionClosed(sess.UserID, sess.ID, "closed", s.deps.Clock.Now())
	if err := s.deps.Events.Publish(context.Background(), evt); err != nil {
		s.deps.Logger.Warn(exploreModule, "Failed to publish session event", map[string]interface{}{"error": err.Error()})
	}
}

func (s *exploreService) Session(userId uuid.UUID, sessionId string) (*session.Session, error) {
	sess, ok := s.deps.Sessions.Get(sessionId)
	if !ok || sess.UserID != userId.String() {
		return nil, model.ErrSessionNotFound
	}
	return sess, nil
}

// apply runs fn against the session and returns the resulting state.
func (s *exploreService) apply(userId uuid.UUID, sessionId string, fn func(*session.Session) error) (*dto.SessionResponse, error) {
	sess, err := s.Session(userId, sessionId)
	if err != nil {
		return nil, err
	}
	if err := fn(sess); err != nil {
		return nil, err
	}
	return s.mapper.ToSessionResponse(sess), nil
}

func (s *exploreService) applyPrompted(userId uuid.UUID, sessionId string, fn func(*session.Session) (*correlation.Prompt, error)) (*dto.CommandResponse, error) {
	var prompt *correlation.Prompt
	res, err := s.apply(userId, sessionId, func(sess *session.Session) error {
		var err error
		prompt, err = fn(sess)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.CommandResponse{Prompt: prompt, Session: res}, nil
}

func (s *exploreService) GetSession(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(*session.Session) error { return nil })
}

func (s *exploreService) CloseSession(ctx context.Context, userId uuid.UUID, sessionId string) error {
	if _, err := s.Session(userId, sessionId); err != nil {
		return err
	}
	// Deleting evicts, and eviction closes.
	s.deps.Sessions.Delete(sessionId)
	return nil
}

func (s *exploreService) Navigate(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.NavigateRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Navigate(ctx, req.URL)
	})
}

func (s *exploreService) Back(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		sess.Location.Back()
		return nil
	})
}

func (s *exploreService) Forward(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		sess.Location.Forward()
		return nil
	})
}

func (s *exploreService) SplitOpen(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.SplitOpenRequest) (*dto.SplitOpenResponse, error) {
	var key string
	res, err := s.apply(userId, sessionId, func(sess *session.Session) error {
		var err error
		key, err = sess.Orchestrator.SplitOpen(ctx, orchestrator.SplitOptions{
			Origin:      req.Origin,
			Datasource:  req.Datasource,
			Queries:     req.Queries,
			Range:       req.Range,
			PanelsState: req.PanelsState,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.SplitOpenResponse{PaneKey: key, Session: res}, nil
}

func (s *exploreService) ClosePane(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.CommandResponse, error) {
	return s.applyPrompted(userId, sessionId, func(sess *session.Session) (*correlation.Prompt, error) {
		return sess.Orchestrator.RequestClosePane(ctx, paneKey)
	})
}

func (s *exploreService) Maximize(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.PaneRefRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.Maximize(req.Pane)
	})
}

func (s *exploreService) EvenResize(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.EvenResize()
	})
}

func (s *exploreService) ToggleSyncTimes(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.PaneRefRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ToggleSyncTimes(ctx, req.Pane)
	})
}

func (s *exploreService) ChangeRange(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeRangeRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ChangeRange(ctx, paneKey, model.RawTimeRange{From: req.From, To: req.To})
	})
}

func (s *exploreService) ChangeQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeQueriesRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		if req.Run {
			return sess.Orchestrator.SetQueries(ctx, paneKey, req.Queries)
		}
		return sess.Orchestrator.ChangeQueries(ctx, paneKey, req.Queries)
	})
}

func (s *exploreService) AddQueryRow(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.AddQueryRowRequest) (*dto.AddQueryRowResponse, error) {
	var added model.Query
	res, err := s.apply(userId, sessionId, func(sess *session.Session) error {
		var err error
		added, err = sess.Orchestrator.AddQueryRow(ctx, paneKey, req.Index)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.AddQueryRowResponse{Query: added, Session: res}, nil
}

func (s *exploreService) RunQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.RunQueries(ctx, paneKey)
	})
}

func (s *exploreService) CancelQueries(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.CancelQueries(paneKey)
	})
}

// ChangeDatasource goes through the correlation editor when one is open so
// that an unsaved correlation is not lost silently.
func (s *exploreService) ChangeDatasource(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeDatasourceRequest) (*dto.CommandResponse, error) {
	return s.applyPrompted(userId, sessionId, func(sess *session.Session) (*correlation.Prompt, error) {
		if req.ImportQueries || sess.Orchestrator.Correlation().EditorMode {
			return sess.Orchestrator.RequestChangeDatasource(ctx, paneKey, req.UID)
		}
		return nil, sess.Orchestrator.ChangeDatasource(ctx, paneKey, req.UID, orchestrator.DatasourceOptions{})
	})
}

func (s *exploreService) ChangeRefreshInterval(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ChangeRefreshRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ChangeRefreshInterval(ctx, paneKey, req.Interval)
	})
}

func (s *exploreService) SetSupplementaryEnabled(ctx context.Context, userId uuid.UUID, sessionId, paneKey, queryType string, req *dto.SupplementaryToggleRequest) (*dto.SessionResponse, error) {
	t, err := model.ParseSupplementaryQueryType(queryType)
	if err != nil {
		return nil, err
	}
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.SetSupplementaryEnabled(ctx, paneKey, t, req.Enabled)
	})
}

func (s *exploreService) ChangePanelsState(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.PanelsStateRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ChangePanelsState(paneKey, req.PanelsState)
	})
}

func (s *exploreService) ScanStart(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ScanStart(ctx, paneKey)
	})
}

func (s *exploreService) ScanStop(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ScanStop(paneKey)
	})
}

func (s *exploreService) ClearLogs(ctx context.Context, userId uuid.UUID, sessionId, paneKey string) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ClearLogs(paneKey)
	})
}

func (s *exploreService) ShiftTime(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ShiftTimeRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ShiftTime(ctx, paneKey, req.Direction)
	})
}

func (s *exploreService) ZoomOut(ctx context.Context, userId uuid.UUID, sessionId, paneKey string, req *dto.ZoomOutRequest) (*dto.SessionResponse, error) {
	factor := req.Factor
	if factor == 0 {
		factor = 2
	}
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ZoomOut(ctx, paneKey, factor)
	})
}

func (s *exploreService) StartCorrelation(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.StartCorrelationRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		if req.Edit {
			return sess.Orchestrator.EditCorrelation(req.Draft)
		}
		return sess.Orchestrator.StartCorrelation(req.Draft)
	})
}

func (s *exploreService) SetCorrelationDirty(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.CorrelationDirtyRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.SetCorrelationDirty(req.CorrelationDirty, req.QueryEditorDirty)
	})
}

func (s *exploreService) ExitCorrelationEditor(ctx context.Context, userId uuid.UUID, sessionId string) (*dto.CommandResponse, error) {
	return s.applyPrompted(userId, sessionId, func(sess *session.Session) (*correlation.Prompt, error) {
		return sess.Orchestrator.RequestCloseEditor(ctx)
	})
}

func (s *exploreService) ResolveCorrelation(ctx context.Context, userId uuid.UUID, sessionId string, req *dto.ResolveCorrelationRequest) (*dto.SessionResponse, error) {
	return s.apply(userId, sessionId, func(sess *session.Session) error {
		return sess.Orchestrator.ResolveCorrelationPrompt(ctx, correlation.Resolution(req.Resolution))
	})
}

func (s *exploreService) LocalHistory(ctx context.Context, userId uuid.UUID, sessionId string) ([]history.Entry, error) {
	sess, err := s.Session(userId, sessionId)
	if err != nil {
		return nil, err
	}
	return sess.Orchestrator.History(), nil
}
