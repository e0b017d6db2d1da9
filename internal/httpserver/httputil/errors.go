package httputil

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// WriteError renders {"error": msg}. An empty msg falls back to the status text.
func WriteError(c *fiber.Ctx, status int, msg string) error {
	if msg == "" {
		msg = http.StatusText(status)
		if msg == "" {
			msg = "unknown error"
		}
	}
	return c.Status(status).JSON(fiber.Map{
		"error": msg,
	})
}

// ErrorHandler renders errors escaping a handler in the same shape as
// WriteError. Details of unexpected errors are logged, not returned.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return WriteError(c, fe.Code, fe.Message)
	}
	slog.ErrorContext(c.UserContext(), "unhandled request error",
		slog.String("path", c.Path()),
		slog.String("error", err.Error()),
	)
	return WriteError(c, fiber.StatusInternalServerError, "")
}
