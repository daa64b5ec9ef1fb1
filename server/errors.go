package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-repository-bun"
)

// ErrorHandler converts errors escaping handlers into the JSON envelope
// every endpoint uses. Clients always see `{success, message}` plus the
// mapped status; internals never leak past this boundary.
func (a *App) ErrorHandler(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return c.Status(fiberErr.Code).JSON(fiber.Map{
				"success": false,
				"message": fiberErr.Message,
			})
		}

		// Only bare lookup misses are rewritten here. Errors the domain
		// layers already classified keep their category even when a
		// record miss sits somewhere in their chain, otherwise a failed
		// credential lookup would leak as a 404.
		if repository.IsRecordNotFound(err) {
			richErr = errors.Wrap(err, errors.CategoryNotFound, "resource not found").
				WithCode(errors.CodeNotFound)
		} else {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}
	}

	status := statusFromError(richErr)
	message := richErr.Message
	if status == fiber.StatusInternalServerError {
		// do not leak wrapped internals
		message = "An unexpected server error occurred"
	}

	logger := a.GetLogger("http")
	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			"error", richErr.Message,
			"category", richErr.Category,
			"path", c.OriginalURL(),
		)
		if a.debug {
			logger.Debug("error details", "metadata", print.MaybePrettyJSON(richErr.Metadata))
		}
	} else {
		logger.Debug("request rejected",
			"error", richErr.Message,
			"category", richErr.Category,
			"status", status,
			"path", c.OriginalURL(),
		)
	}

	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

func statusFromError(err *errors.Error) int {
	if err.Code >= 400 && err.Code <= 599 {
		return err.Code
	}

	switch err.Category {
	case errors.CategoryAuth:
		return fiber.StatusUnauthorized
	case errors.CategoryAuthz:
		return fiber.StatusForbidden
	case errors.CategoryConflict:
		return fiber.StatusConflict
	case errors.CategoryNotFound:
		return fiber.StatusNotFound
	case errors.CategoryValidation, errors.CategoryBadInput:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
