package handlers

import (
	"github.com/gofiber/fiber/v2"

	"pdfexport/internal/infra/chrome"
)

// StatsProvider reports renderer pool usage.
type StatsProvider interface {
	Stats() (chrome.Stats, error)
}

// HandleChromeStats exposes basic observability for the Chrome pool
// (capacity / idle / in_use / restarts).
func HandleChromeStats(p StatsProvider) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := p.Stats()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Chrome pool init failed: "+err.Error())
		}
		return c.JSON(s)
	}
}
