package serverutils

import (
	"errors"

	"explore-state-be/pkg/explore/datasource"
	"explore-state-be/pkg/explore/model"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ErrorHandlerMiddleware renders errors returned by handlers as BaseResponse
// bodies with a status derived from the error.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var verr *ValidationError
		if errors.As(err, &verr) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ValidationErrorResponse(verr.Fields))
		}

		code := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, err.Error()))
	}
}

func StatusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrPaneNotFound),
		errors.Is(err, datasource.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, model.ErrTooManyPanes),
		errors.Is(err, model.ErrNoPendingPrompt),
		errors.Is(err, model.ErrSessionClosed):
		return fiber.StatusConflict
	case errors.Is(err, model.ErrInvalidTimeRange),
		errors.Is(err, model.ErrInvalidQueryIndex),
		errors.Is(err, model.ErrUnknownSupplement),
		errors.Is(err, model.ErrInvalidRefreshRate),
		errors.Is(err, model.ErrDatasourceMissing),
		errors.Is(err, datasource.ErrImportNotSupported):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
