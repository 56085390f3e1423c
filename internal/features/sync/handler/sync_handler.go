package handler

import (
	"context"
	"errors"
	"net/http"

	"delivery-verification/internal/core/logger"
	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/sync/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SyncCounter exposes the sync backlog counters shown in the status report.
type SyncCounter interface {
	CountBySyncStatus(ctx context.Context, status routedomain.SyncStatus) (int, error)
}

// SyncHandler handles HTTP requests for sync control.
type SyncHandler struct {
	scheduler *service.Scheduler
	counter   SyncCounter
}

// NewSyncHandler creates a new SyncHandler.
func NewSyncHandler(scheduler *service.Scheduler, counter SyncCounter) *SyncHandler {
	return &SyncHandler{
		scheduler: scheduler,
		counter:   counter,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// SyncResponse reports the outcome of a manual reconciliation pass.
type SyncResponse struct {
	// Synced is the number of verifications pushed.
	Synced int `json:"synced"`
}

// StatusResponse is the sync status report.
type StatusResponse struct {
	service.Status
	// Pending is the number of verifications waiting to be pushed.
	Pending int `json:"pending"`
	// Failed is the number of verifications whose push failed.
	Failed int `json:"failed"`
}

// SyncNow godoc
// @Summary Trigger a reconciliation pass
// @Description Pushes all pending verifications to the remote system immediately
// @Tags sync
// @Produce json
// @Success 200 {object} SyncResponse
// @Failure 409 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /sync [post]
func (h *SyncHandler) SyncNow(c *fiber.Ctx) error {
	synced, err := h.scheduler.SyncNow(c.Context())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSyncInProgress):
			return c.Status(http.StatusConflict).JSON(ErrorResponse{
				Message: "sync already in progress",
				RayID:   c.Locals("requestid").(string),
			})
		case errors.Is(err, service.ErrRemoteUnavailable):
			return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{
				Message: "remote system unavailable",
				RayID:   c.Locals("requestid").(string),
			})
		default:
			logger.Get().Error("Sync pass failed", zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Message: "Internal server error",
				RayID:   c.Locals("requestid").(string),
			})
		}
	}

	return c.JSON(SyncResponse{Synced: synced})
}

// GetStatus godoc
// @Summary Get sync status
// @Description Returns the scheduler state, the last pass outcome and the backlog counters
// @Tags sync
// @Produce json
// @Success 200 {object} StatusResponse
// @Failure 500 {object} ErrorResponse
// @Router /sync/status [get]
func (h *SyncHandler) GetStatus(c *fiber.Ctx) error {
	pending, err := h.counter.CountBySyncStatus(c.Context(), routedomain.SyncStatusPending)
	if err != nil {
		logger.Get().Error("Failed to count pending verifications", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}
	failed, err := h.counter.CountBySyncStatus(c.Context(), routedomain.SyncStatusFailed)
	if err != nil {
		logger.Get().Error("Failed to count failed verifications", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(StatusResponse{
		Status:  h.scheduler.Status(),
		Pending: pending,
		Failed:  failed,
	})
}

// CancelSchedule godoc
// @Summary Cancel the periodic sync job
// @Description Stops the periodic reconciliation job; manual triggers keep working
// @Tags sync
// @Produce json
// @Success 200 {object} service.Status
// @Router /sync/schedule [delete]
func (h *SyncHandler) CancelSchedule(c *fiber.Ctx) error {
	h.scheduler.Stop()
	return c.JSON(h.scheduler.Status())
}
