package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"delivery-verification/internal/core/logger"
	locationports "delivery-verification/internal/features/location/ports"
	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/verification/domain"
	"delivery-verification/internal/features/verification/ports"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrLocationRequired is returned when a capture is attempted without a GPS fix.
// Validating the fix is the caller's job; capturing without one is never allowed.
var ErrLocationRequired = errors.New("location required for capture")

// DeliveryReader resolves delivery targets for validation and capture.
type DeliveryReader interface {
	// GetDelivery returns a delivery or nil when it does not exist.
	GetDelivery(ctx context.Context, id string) (*routedomain.Delivery, error)
}

// CaptureInput carries the evidence for one delivery verification.
type CaptureInput struct {
	// DeliveryID identifies the delivery being verified.
	DeliveryID string
	// Location is the GPS fix to validate. Nil falls back to the location
	// provider; a capture without any fix is rejected.
	Location *domain.Location
	// ActualVolume is the measured cargo volume.
	ActualVolume float64
	// ActualWeight is the measured cargo weight.
	ActualWeight float64
	// Comments are optional free-text notes.
	Comments string
	// Signature is an optional base64-encoded signature image.
	Signature string
	// PhotoRef is an optional reference to a captured photo.
	PhotoRef string
}

// CaptureService validates positions against delivery targets and creates
// verification evidence, transitioning the parent delivery atomically.
type CaptureService struct {
	verifications ports.VerificationRepository
	deliveries    DeliveryReader
	locations     locationports.Provider
	validator     domain.Validator
	now           func() time.Time
	logger        *zap.Logger
}

// NewCaptureService creates a new CaptureService. The location provider is
// optional; without one a capture must carry its own fix.
func NewCaptureService(verifications ports.VerificationRepository, deliveries DeliveryReader, locations locationports.Provider, validator domain.Validator) *CaptureService {
	return &CaptureService{
		verifications: verifications,
		deliveries:    deliveries,
		locations:     locations,
		validator:     validator,
		now:           time.Now,
		logger:        logger.Named("capture"),
	}
}

// CheckLocation validates a GPS fix against the delivery's target coordinates.
func (s *CaptureService) CheckLocation(ctx context.Context, deliveryID string, location *domain.Location) (domain.ValidationResult, error) {
	delivery, err := s.deliveries.GetDelivery(ctx, deliveryID)
	if err != nil {
		return domain.ValidationResult{}, fmt.Errorf("failed to load delivery: %w", err)
	}
	if delivery == nil {
		return domain.ValidationResult{}, domain.ErrDeliveryNotFound
	}

	return s.validator.Validate(location, delivery.Latitude, delivery.Longitude), nil
}

// Capture validates the fix, persists a new verification and completes the
// delivery in the same unit of work. The record starts in sync status
// PENDING; the reconciler pushes it later.
func (s *CaptureService) Capture(ctx context.Context, input CaptureInput) (*domain.Verification, error) {
	if input.Location == nil && s.locations != nil {
		fix, err := s.locations.CurrentFix(ctx)
		if err != nil {
			s.logger.Warn("Could not acquire GPS fix for capture", zap.Error(err))
		} else {
			input.Location = fix
		}
	}
	if input.Location == nil {
		return nil, ErrLocationRequired
	}

	result, err := s.CheckLocation(ctx, input.DeliveryID, input.Location)
	if err != nil {
		return nil, err
	}
	if !result.Valid() {
		return nil, &ValidationError{Result: result}
	}

	verification := &domain.Verification{
		ID:                 uuid.NewString(),
		DeliveryID:         input.DeliveryID,
		GPSLatitude:        input.Location.Latitude,
		GPSLongitude:       input.Location.Longitude,
		GPSAccuracy:        input.Location.AccuracyMeters,
		DistanceFromTarget: result.DistanceMeters,
		ActualVolume:       input.ActualVolume,
		ActualWeight:       input.ActualWeight,
		Comments:           input.Comments,
		Signature:          input.Signature,
		PhotoRef:           input.PhotoRef,
		VerifiedAt:         s.now().UTC(),
		SyncStatus:         routedomain.SyncStatusPending,
	}

	if err := s.verifications.CreateForDelivery(ctx, verification); err != nil {
		if errors.Is(err, domain.ErrDeliveryNotFound) || errors.Is(err, domain.ErrAlreadyVerified) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to store verification: %w", err)
	}

	s.logger.Info("Verification captured",
		zap.String("verification_id", verification.ID),
		zap.String("delivery_id", verification.DeliveryID),
		zap.Float64("distance_from_target", verification.DistanceFromTarget),
	)

	return verification, nil
}

// Evidence returns the verification captured for a delivery, or nil when
// none exists yet.
func (s *CaptureService) Evidence(ctx context.Context, deliveryID string) (*domain.Verification, error) {
	verification, err := s.verifications.GetByDelivery(ctx, deliveryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load verification: %w", err)
	}
	return verification, nil
}

// ValidationError reports a fix that failed the admission gate.
type ValidationError struct {
	// Result is the failing validation outcome.
	Result domain.ValidationResult
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("location rejected (%s): %s", e.Result.Status, e.Result.Message)
}
