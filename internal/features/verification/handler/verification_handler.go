package handler

import (
	"errors"
	"net/http"

	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/verification/domain"
	"delivery-verification/internal/features/verification/service"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// VerificationHandler handles HTTP requests for delivery verification.
type VerificationHandler struct {
	captureService *service.CaptureService
}

// NewVerificationHandler creates a new VerificationHandler.
func NewVerificationHandler(captureService *service.CaptureService) *VerificationHandler {
	return &VerificationHandler{
		captureService: captureService,
	}
}

// ErrorResponse represents an error response with Ray ID.
type ErrorResponse struct {
	// Message is the error description.
	Message string `json:"message"`
	// RayID is the unique request identifier for tracing.
	RayID string `json:"ray_id,omitempty"`
}

// LocationRequest is a GPS fix submitted by the capture client.
type LocationRequest struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters"`
}

// CheckRequest represents the request body for a location validation preview.
type CheckRequest struct {
	Location *LocationRequest `json:"location"`
}

// VerifyRequest represents the request body for capturing a verification.
type VerifyRequest struct {
	Location     *LocationRequest `json:"location"`
	ActualVolume float64          `json:"actual_volume"`
	ActualWeight float64          `json:"actual_weight"`
	Comments     string           `json:"comments"`
	Signature    string           `json:"signature"`
	PhotoRef     string           `json:"photo_ref"`
}

func (r *LocationRequest) toDomain() *domain.Location {
	if r == nil {
		return nil
	}
	return &domain.Location{
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		AccuracyMeters: r.AccuracyMeters,
	}
}

// CheckLocation godoc
// @Summary Validate a position against a delivery target
// @Description Previews whether the submitted GPS fix would be accepted for the delivery, without storing anything
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param location body CheckRequest true "GPS fix"
// @Success 200 {object} domain.ValidationResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /deliveries/{id}/check [post]
func (h *VerificationHandler) CheckLocation(c *fiber.Ctx) error {
	var req CheckRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	result, err := h.captureService.CheckLocation(c.Context(), c.Params("id"), req.Location.toDomain())
	if err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "delivery not found",
				RayID:   c.Locals("requestid").(string),
			})
		}
		logger.Get().Error("Failed to validate location", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(result)
}

// Verify godoc
// @Summary Capture a delivery verification
// @Description Validates the GPS fix and stores the verification evidence, completing the delivery atomically
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Delivery ID"
// @Param verification body VerifyRequest true "Verification evidence"
// @Success 201 {object} domain.Verification
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} domain.ValidationResult
// @Router /deliveries/{id}/verify [post]
func (h *VerificationHandler) Verify(c *fiber.Ctx) error {
	var req VerifyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Message: "Invalid request body",
			RayID:   c.Locals("requestid").(string),
		})
	}

	verification, err := h.captureService.Capture(c.Context(), service.CaptureInput{
		DeliveryID:   c.Params("id"),
		Location:     req.Location.toDomain(),
		ActualVolume: req.ActualVolume,
		ActualWeight: req.ActualWeight,
		Comments:     req.Comments,
		Signature:    req.Signature,
		PhotoRef:     req.PhotoRef,
	})
	if err != nil {
		var validationErr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrLocationRequired):
			return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
				Message: "location is required",
				RayID:   c.Locals("requestid").(string),
			})
		case errors.Is(err, domain.ErrDeliveryNotFound):
			return c.Status(http.StatusNotFound).JSON(ErrorResponse{
				Message: "delivery not found",
				RayID:   c.Locals("requestid").(string),
			})
		case errors.Is(err, domain.ErrAlreadyVerified):
			return c.Status(http.StatusConflict).JSON(ErrorResponse{
				Message: "delivery already verified",
				RayID:   c.Locals("requestid").(string),
			})
		case errors.As(err, &validationErr):
			return c.Status(http.StatusUnprocessableEntity).JSON(validationErr.Result)
		default:
			logger.Get().Error("Failed to capture verification", zap.Error(err))
			return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
				Message: "Internal server error",
				RayID:   c.Locals("requestid").(string),
			})
		}
	}

	return c.Status(http.StatusCreated).JSON(verification)
}

// GetVerification godoc
// @Summary Get the verification of a delivery
// @Description Returns the evidence captured for a delivery
// @Tags verification
// @Produce json
// @Param id path string true "Delivery ID"
// @Success 200 {object} domain.Verification
// @Failure 404 {object} ErrorResponse
// @Router /deliveries/{id}/verification [get]
func (h *VerificationHandler) GetVerification(c *fiber.Ctx) error {
	verification, err := h.captureService.Evidence(c.Context(), c.Params("id"))
	if err != nil {
		logger.Get().Error("Failed to load verification", zap.Error(err))
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
			Message: "Internal server error",
			RayID:   c.Locals("requestid").(string),
		})
	}
	if verification == nil {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{
			Message: "no verification captured for delivery",
			RayID:   c.Locals("requestid").(string),
		})
	}

	return c.JSON(verification)
}
