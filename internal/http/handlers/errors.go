package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"pdfexport/internal/infra/logging"
)

// ErrorHandler renders every error as {"error": "<message>"}. Errors that are
// not *fiber.Error become 500 with their own message.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := err.Error()

	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
		msg = fe.Message
	}

	logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

	return c.Status(code).JSON(fiber.Map{"error": msg})
}
