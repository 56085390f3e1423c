package handler

import (
	"errors"
	"net/http"

	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/routes/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RouteHandler handles HTTP requests for route operations.
type RouteHandler struct {
	routeService *service.RouteService
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(routeService *service.RouteService) *RouteHandler {
	return &RouteHandler{
		routeService: routeService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// UpdateStatusRequest represents the request body for a route status change.
type UpdateStatusRequest struct {
	Status domain.RouteStatus `json:"status"`
}

// UpdateDeliveryStatusRequest represents the request body for a delivery
// status change.
type UpdateDeliveryStatusRequest struct {
	Status domain.DeliveryStatus `json:"status"`
}

// ImportResponse reports how many routes an import stored.
type ImportResponse struct {
	// Imported is the number of newly stored routes.
	Imported int `json:"imported"`
}

// ListRoutes godoc
// @Summary List routes
// @Description Returns all locally stored routes, newest first, without their deliveries
// @Tags routes
// @Produce json
// @Param status query string false "Route status filter"
// @Success 200 {array} domain.Route
// @Failure 500 {object} ErrorResponse
// @Router /routes [get]
func (h *RouteHandler) ListRoutes(c *fiber.Ctx) error {
	var routes []domain.Route
	var err error
	if status := c.Query("status"); status != "" {
		routes, err = h.routeService.ListRoutesByStatus(c.Context(), domain.RouteStatus(status))
	} else {
		routes, err = h.routeService.ListRoutes(c.Context())
	}
	if err != nil {
		logger.Get().Error("Failed to list routes", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(routes)
}

// GetRoute godoc
// @Summary Get a route
// @Description Returns a route with its deliveries in traversal order
// @Tags routes
// @Produce json
// @Param id path string true "Route ID"
// @Success 200 {object} domain.Route
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /routes/{id} [get]
func (h *RouteHandler) GetRoute(c *fiber.Ctx) error {
	route, err := h.routeService.GetRoute(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrRouteNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "route not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		logger.Get().Error("Failed to get route", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(route)
}

// ImportRoutes godoc
// @Summary Import planned routes
// @Description Fetches the routes planned for the current period from the remote system and stores them locally
// @Tags routes
// @Produce json
// @Success 200 {object} ImportResponse
// @Failure 502 {object} ErrorResponse
// @Router /routes/import [post]
func (h *RouteHandler) ImportRoutes(c *fiber.Ctx) error {
	imported, err := h.routeService.ImportRoutes(c.Context())
	if err != nil {
		logger.Get().Error("Failed to import routes", zap.Error(err))
		return c.Status(http.StatusBadGateway).JSON(ErrorResponse{
			Message: "failed to import routes from remote system",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(ImportResponse{Imported: imported})
}

// UpdateRouteStatus godoc
// @Summary Update route status
// @Description Transitions the lifecycle status of a route
// @Tags routes
// @Accept json
// @Produce json
// @Param id path string true "Route ID"
// @Param status body UpdateStatusRequest true "New status"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /routes/{id}/status [patch]
func (h *RouteHandler) UpdateRouteStatus(c *fiber.Ctx) error {
	var req UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	var err error
	switch req.Status {
	case domain.RouteStatusInProgress:
		err = h.routeService.StartRoute(c.Context(), c.Params("id"))
	case domain.RouteStatusCompleted:
		err = h.routeService.CompleteRoute(c.Context(), c.Params("id"))
	default:
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "status must be IN_PROGRESS or COMPLETED",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if err != nil {
		if errors.Is(err, service.ErrRouteNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "route not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		logger.Get().Error("Failed to update route status", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(fiber.Map{"message": "Route status updated"})
}

// UpdateDeliveryStatus godoc
// @Summary Update delivery status
// @Description Transitions the lifecycle status of a single delivery stop
// @Tags routes
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param status body UpdateDeliveryStatusRequest true "New status"
// @Success 200 {object} map[string]string
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /deliveries/{id}/status [patch]
func (h *RouteHandler) UpdateDeliveryStatus(c *fiber.Ctx) error {
	var req UpdateDeliveryStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	switch req.Status {
	case domain.DeliveryStatusInProgress, domain.DeliveryStatusFailed:
	default:
		// COMPLETED only happens through a verification capture.
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "status must be IN_PROGRESS or FAILED",
			RayID:   c.Locals("requestid").(string),
		})
	}

	if err := h.routeService.UpdateDeliveryStatus(c.Context(), c.Params("id"), req.Status); err != nil {
		if errors.Is(err, service.ErrDeliveryNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "delivery not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		logger.Get().Error("Failed to update delivery status", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(fiber.Map{"message": "Delivery status updated"})
}

// DeleteRoute godoc
// @Summary Delete a route
// @Description Removes a route together with its deliveries and their verifications
// @Tags routes
// @Produce json
// @Param id path string true "Route ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /routes/{id} [delete]
func (h *RouteHandler) DeleteRoute(c *fiber.Ctx) error {
	if err := h.routeService.DeleteRoute(c.Context(), c.Params("id")); err != nil {
		if errors.Is(err, service.ErrRouteNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "route not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		logger.Get().Error("Failed to delete route", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(fiber.Map{"message": "Route deleted"})
}
