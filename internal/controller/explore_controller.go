package controller

import (
	"explore-state-be/internal/dto"
	"explore-state-be/internal/pkg/serverutils"
	"explore-state-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IExploreController interface {
	RegisterRoutes(r fiber.Router)
}

type exploreController struct {
	service      service.IExploreService
	history      service.IHistoryService
	correlations service.ICorrelationService
}

// NewExploreController builds the explore routes. history and correlations
// may be nil when no database is configured; their routes answer 503.
func NewExploreController(explore service.IExploreService, history service.IHistoryService, correlations service.ICorrelationService) IExploreController {
	return &exploreController{
		service:      explore,
		history:      history,
		correlations: correlations,
	}
}

func (c *exploreController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/explore/v1")
	h.Use(serverutils.JwtMiddleware)

	h.Post("/sessions", c.CreateSession)
	h.Get("/sessions/:id", c.GetSession)
	h.Delete("/sessions/:id", c.CloseSession)
	h.Post("/sessions/:id/navigate", c.Navigate)
	h.Post("/sessions/:id/back", c.Back)
	h.Post("/sessions/:id/forward", c.Forward)
	h.Get("/sessions/:id/history", c.LocalHistory)

	h.Post("/sessions/:id/split", c.SplitOpen)
	h.Post("/sessions/:id/maximize", c.Maximize)
	h.Post("/sessions/:id/even-resize", c.EvenResize)
	h.Post("/sessions/:id/sync-times", c.ToggleSyncTimes)

	p := h.Group("/sessions/:id/panes/:pane")
	p.Delete("", c.ClosePane)
	p.Put("/range", c.ChangeRange)
	p.Put("/queries", c.ChangeQueries)
	p.Post("/queries/rows", c.AddQueryRow)
	p.Post("/run", c.RunQueries)
	p.Post("/cancel", c.CancelQueries)
	p.Put("/datasource", c.ChangeDatasource)
	p.Put("/refresh", c.ChangeRefreshInterval)
	p.Put("/supplementary/:type", c.SetSupplementaryEnabled)
	p.Put("/panels", c.ChangePanelsState)
	p.Post("/scan", c.ScanStart)
	p.Delete("/scan", c.ScanStop)
	p.Post("/clear-logs", c.ClearLogs)
	p.Post("/shift", c.ShiftTime)
	p.Post("/zoom-out", c.ZoomOut)

	h.Post("/sessions/:id/correlation/start", c.StartCorrelation)
	h.Put("/sessions/:id/correlation/dirty", c.SetCorrelationDirty)
	h.Post("/sessions/:id/correlation/exit", c.ExitCorrelationEditor)
	h.Post("/sessions/:id/correlation/resolve", c.ResolveCorrelation)

	h.Get("/history", c.ListHistory)
	h.Put("/history/:historyId/star", c.StarHistory)
	h.Delete("/history/:historyId", c.DeleteHistory)
	h.Get("/correlations", c.ListCorrelations)
	h.Delete("/correlations/:correlationId", c.DeleteCorrelation)
}

// bind parses and validates the body of a request.
func bind(ctx *fiber.Ctx, req interface{}) error {
	if err := ctx.BodyParser(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return serverutils.ValidateRequest(req)
}

func (c *exploreController) CreateSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	var req dto.CreateSessionRequest
	if len(ctx.Body()) > 0 {
		if err := bind(ctx, &req); err != nil {
			return err
		}
	}

	res, err := c.service.CreateSession(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Success create explore session", res))
}

func (c *exploreController) GetSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	res, err := c.service.GetSession(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get explore session", res))
}

func (c *exploreController) CloseSession(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}

	if err := c.service.CloseSession(ctx.UserContext(), userId, ctx.Params("id")); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success close explore session", nil))
}

func (c *exploreController) Navigate(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.NavigateRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	res, err := c.service.Navigate(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success navigate", res))
}

func (c *exploreController) Back(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Back(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success navigate back", res))
}

func (c *exploreController) Forward(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.Forward(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success navigate forward", res))
}

func (c *exploreController) LocalHistory(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.LocalHistory(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get session history", res))
}

func (c *exploreController) SplitOpen(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.SplitOpenRequest
	if len(ctx.Body()) > 0 {
		if err := bind(ctx, &req); err != nil {
			return err
		}
	}

	res, err := c.service.SplitOpen(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success open split pane", res))
}

func (c *exploreController) ClosePane(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ClosePane(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success close pane", res))
}

func (c *exploreController) Maximize(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.PaneRefRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.Maximize(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success maximize pane", res))
}

func (c *exploreController) EvenResize(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.EvenResize(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resize panes", res))
}

func (c *exploreController) ToggleSyncTimes(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.PaneRefRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ToggleSyncTimes(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success toggle synced times", res))
}

func (c *exploreController) ChangeRange(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ChangeRangeRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ChangeRange(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success change range", res))
}

func (c *exploreController) ChangeQueries(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ChangeQueriesRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ChangeQueries(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success change queries", res))
}

func (c *exploreController) AddQueryRow(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.AddQueryRowRequest
	if len(ctx.Body()) > 0 {
		if err := bind(ctx, &req); err != nil {
			return err
		}
	}
	res, err := c.service.AddQueryRow(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success add query row", res))
}

func (c *exploreController) RunQueries(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.RunQueries(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success run queries", res))
}

func (c *exploreController) CancelQueries(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.CancelQueries(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success cancel queries", res))
}

func (c *exploreController) ChangeDatasource(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ChangeDatasourceRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ChangeDatasource(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success change datasource", res))
}

func (c *exploreController) ChangeRefreshInterval(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ChangeRefreshRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ChangeRefreshInterval(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success change refresh interval", res))
}

func (c *exploreController) SetSupplementaryEnabled(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.SupplementaryToggleRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.SetSupplementaryEnabled(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), ctx.Params("type"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success toggle supplementary query", res))
}

func (c *exploreController) ChangePanelsState(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.PanelsStateRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ChangePanelsState(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success change panels state", res))
}

func (c *exploreController) ScanStart(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ScanStart(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success start scanning", res))
}

func (c *exploreController) ScanStop(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ScanStop(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success stop scanning", res))
}

func (c *exploreController) ClearLogs(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ClearLogs(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success clear logs", res))
}

func (c *exploreController) ShiftTime(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ShiftTimeRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ShiftTime(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success shift time", res))
}

func (c *exploreController) ZoomOut(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ZoomOutRequest
	if len(ctx.Body()) > 0 {
		if err := bind(ctx, &req); err != nil {
			return err
		}
	}
	res, err := c.service.ZoomOut(ctx.UserContext(), userId, ctx.Params("id"), ctx.Params("pane"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success zoom out", res))
}

func (c *exploreController) StartCorrelation(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.StartCorrelationRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.StartCorrelation(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success start correlation editor", res))
}

func (c *exploreController) SetCorrelationDirty(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.CorrelationDirtyRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.SetCorrelationDirty(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success update correlation editor", res))
}

func (c *exploreController) ExitCorrelationEditor(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.service.ExitCorrelationEditor(ctx.UserContext(), userId, ctx.Params("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success exit correlation editor", res))
}

func (c *exploreController) ResolveCorrelation(ctx *fiber.Ctx) error {
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.ResolveCorrelationRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}
	res, err := c.service.ResolveCorrelation(ctx.UserContext(), userId, ctx.Params("id"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success resolve correlation prompt", res))
}

func (c *exploreController) ListHistory(ctx *fiber.Ctx) error {
	if c.history == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Query history is not persisted")
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	var req dto.HistoryListRequest
	if err := ctx.QueryParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid query parameters")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.history.List(ctx.UserContext(), userId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get query history", res))
}

func (c *exploreController) StarHistory(ctx *fiber.Ctx) error {
	if c.history == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Query history is not persisted")
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(ctx.Params("historyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid history id")
	}
	var req dto.StarHistoryRequest
	if err := bind(ctx, &req); err != nil {
		return err
	}

	if err := c.history.Star(ctx.UserContext(), userId, id, req.Starred); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success star query history", nil))
}

func (c *exploreController) DeleteHistory(ctx *fiber.Ctx) error {
	if c.history == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Query history is not persisted")
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(ctx.Params("historyId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid history id")
	}

	if err := c.history.Delete(ctx.UserContext(), userId, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete query history", nil))
}

func (c *exploreController) ListCorrelations(ctx *fiber.Ctx) error {
	if c.correlations == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Correlations are not persisted")
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	res, err := c.correlations.List(ctx.UserContext(), userId, ctx.Query("sourceUid"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get correlations", res))
}

func (c *exploreController) DeleteCorrelation(ctx *fiber.Ctx) error {
	if c.correlations == nil {
		return fiber.NewError(fiber.StatusServiceUnavailable, "Correlations are not persisted")
	}
	userId, err := serverutils.CurrentUserID(ctx)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(ctx.Params("correlationId"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid correlation id")
	}
	if err := c.correlations.Delete(ctx.UserContext(), userId, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete correlation", nil))
}
