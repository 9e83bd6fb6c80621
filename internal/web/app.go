// Package web builds the bare Fiber app shared by the API server and handler tests.
package web

import (
	"errors"

	"letscrap-backend/internal/logging"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error as {"error": message}.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var e *fiber.Error
	if errors.As(err, &e) {
		if e.Code == fiber.StatusNotFound && e.Message == "Cannot "+c.Method()+" "+c.Path() {
			e = fiber.NewError(fiber.StatusNotFound, "Route not found")
		}
		return c.Status(e.Code).JSON(fiber.Map{
			"error": e.Message,
		})
	}
	logging.Error().Err(err).Str("path", c.Path()).Msg("unexpected error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}

// NewApp returns a Fiber app with the JSON codec and error handler configured but no routes.
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "letscrap",
		ErrorHandler:          ErrorHandler,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		DisableStartupMessage: true,
	})
}
