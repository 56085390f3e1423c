package handler

import (
	"errors"
	"net/http"

	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/location/ports"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// LocationHandler handles HTTP requests for device position.
type LocationHandler struct {
	provider ports.Provider
}

// NewLocationHandler creates a new LocationHandler.
func NewLocationHandler(provider ports.Provider) *LocationHandler {
	return &LocationHandler{
		provider: provider,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// CurrentFix godoc
// @Summary Get the current GPS fix
// @Description Blocks until the position source delivers a usable fix or the fix window expires
// @Tags location
// @Produce json
// @Success 200 {object} domain.Location
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /location/current [get]
func (h *LocationHandler) CurrentFix(c *fiber.Ctx) error {
	fix, err := h.provider.CurrentFix(c.Context())
	if err != nil {
		switch {
		case errors.Is(err, ports.ErrNoFix):
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "No GPS location available",
				RayID:   c.Locals("requestid").(string),
			})
		case errors.Is(err, ports.ErrSourceUnavailable):
			return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
				Message: "position source unavailable",
				RayID:   c.Locals("requestid").(string),
			})
		default:
			logger.Get().Error("Failed to acquire GPS fix", zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Message: "Internal server error",
				RayID:   c.Locals("requestid").(string),
			})
		}
	}

	return c.JSON(fix)
}
