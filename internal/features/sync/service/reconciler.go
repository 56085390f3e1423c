package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"delivery-verification/internal/core/logger"
	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/sync/domain"
	"delivery-verification/internal/features/sync/ports"
	verificationdomain "delivery-verification/internal/features/verification/domain"
	verificationports "delivery-verification/internal/features/verification/ports"

	"go.uber.org/zap"
)

// ErrRemoteUnavailable is returned when a pass cannot even start because no
// session to the remote system exists.
var ErrRemoteUnavailable = errors.New("remote system unavailable")

// DeliveryReader resolves the parent delivery of a verification.
type DeliveryReader interface {
	// GetDelivery returns a delivery or nil when it does not exist.
	GetDelivery(ctx context.Context, id string) (*routedomain.Delivery, error)
}

// Reconciler pushes locally captured verifications to the remote system.
// Each pass works on a point-in-time snapshot of the pending records in
// capture order. Item failures are isolated: a record that cannot be pushed
// is marked FAILED and the pass moves on. Only local storage write failures
// abort a pass, because continuing would risk re-pushing a record whose
// outcome was never persisted.
type Reconciler struct {
	verifications verificationports.VerificationRepository
	deliveries    DeliveryReader
	sessions      ports.SessionProvider
	events        ports.EventClient
	programID     string
	stageID       string
	logger        *zap.Logger
}

// NewReconciler creates a new Reconciler.
func NewReconciler(
	verifications verificationports.VerificationRepository,
	deliveries DeliveryReader,
	sessions ports.SessionProvider,
	events ports.EventClient,
	programID, stageID string,
) *Reconciler {
	return &Reconciler{
		verifications: verifications,
		deliveries:    deliveries,
		sessions:      sessions,
		events:        events,
		programID:     programID,
		stageID:       stageID,
		logger:        logger.Named("sync"),
	}
}

// Run executes one reconciliation pass and returns the number of
// verifications that reached the remote system.
func (r *Reconciler) Run(ctx context.Context) (int, error) {
	session, err := r.sessions.Session(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrRemoteUnavailable, err)
	}

	pending, err := r.verifications.ListBySyncStatus(ctx, routedomain.SyncStatusPending)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending verifications: %w", err)
	}
	if len(pending) == 0 {
		r.logger.Debug("No pending verifications to sync")
		return 0, nil
	}

	synced := 0
	for i := range pending {
		if err := ctx.Err(); err != nil {
			return synced, err
		}
		v := &pending[i]

		delivery, err := r.deliveries.GetDelivery(ctx, v.DeliveryID)
		if err != nil {
			return synced, fmt.Errorf("failed to resolve delivery of %s: %w", v.ID, err)
		}
		if delivery == nil {
			// Orphaned evidence cannot be pushed; park it instead of
			// blocking the rest of the backlog.
			r.logger.Warn("Verification references missing delivery",
				zap.String("verification_id", v.ID),
				zap.String("delivery_id", v.DeliveryID),
			)
			if err := r.verifications.MarkFailed(ctx, v.ID); err != nil {
				return synced, fmt.Errorf("failed to mark %s failed: %w", v.ID, err)
			}
			continue
		}

		event := buildEvent(r.programID, r.stageID, v, delivery)
		remoteID, err := r.events.CreateEvent(ctx, session, event)
		if err != nil {
			r.logger.Warn("Failed to push verification",
				zap.String("verification_id", v.ID), zap.Error(err))
			if err := r.verifications.MarkFailed(ctx, v.ID); err != nil {
				return synced, fmt.Errorf("failed to mark %s failed: %w", v.ID, err)
			}
			continue
		}

		if err := r.verifications.MarkSynced(ctx, v.ID, remoteID); err != nil {
			return synced, fmt.Errorf("failed to mark %s synced: %w", v.ID, err)
		}
		synced++
		r.logger.Info("Verification synced",
			zap.String("verification_id", v.ID),
			zap.String("remote_event_id", remoteID),
		)
	}

	r.logger.Info("Reconciliation pass finished",
		zap.Int("pending", len(pending)),
		zap.Int("synced", synced),
	)
	return synced, nil
}

// buildEvent maps a verification and its delivery to the remote event shape.
func buildEvent(programID, stageID string, v *verificationdomain.Verification, delivery *routedomain.Delivery) *domain.Event {
	dataValues := []domain.DataValue{
		{DataElement: domain.ElementOrderVolume, Value: formatFloat(delivery.OrderVolume)},
		{DataElement: domain.ElementOrderWeight, Value: formatFloat(delivery.OrderWeight)},
		{DataElement: domain.ElementActualVolume, Value: formatFloat(v.ActualVolume)},
		{DataElement: domain.ElementActualWeight, Value: formatFloat(v.ActualWeight)},
		{DataElement: domain.ElementGPSLatitude, Value: formatFloat(v.GPSLatitude)},
		{DataElement: domain.ElementGPSLongitude, Value: formatFloat(v.GPSLongitude)},
		{DataElement: domain.ElementGPSAccuracy, Value: formatFloat(v.GPSAccuracy)},
		{DataElement: domain.ElementDistanceFromTarget, Value: formatFloat(v.DistanceFromTarget)},
		{DataElement: domain.ElementTimestamp, Value: strconv.FormatInt(v.VerifiedAt.UnixMilli(), 10)},
	}
	if v.Comments != "" {
		dataValues = append(dataValues, domain.DataValue{DataElement: domain.ElementComments, Value: v.Comments})
	}
	if v.Signature != "" {
		dataValues = append(dataValues, domain.DataValue{DataElement: domain.ElementSignature, Value: v.Signature})
	}
	if v.PhotoRef != "" {
		dataValues = append(dataValues, domain.DataValue{DataElement: domain.ElementPhoto, Value: v.PhotoRef})
	}

	return &domain.Event{
		Program:      programID,
		ProgramStage: stageID,
		OrgUnit:      delivery.FacilityID,
		EventDate:    v.VerifiedAt.Format("2006-01-02"),
		Status:       domain.EventStatusCompleted,
		Coordinate: &domain.Coordinate{
			Latitude:  v.GPSLatitude,
			Longitude: v.GPSLongitude,
		},
		DataValues: dataValues,
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
