package ports

import (
	"context"

	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/verification/domain"
)

// VerificationRepository defines the durable local storage operations for
// verification evidence. This is a Secondary Port (Driven Port).
type VerificationRepository interface {
	// CreateForDelivery inserts the verification and completes its parent
	// delivery in one transaction. Either both writes persist or neither
	// does. Returns domain.ErrDeliveryNotFound for an unknown delivery and
	// domain.ErrAlreadyVerified when evidence already exists for it.
	CreateForDelivery(ctx context.Context, verification *domain.Verification) error

	// GetByDelivery returns the verification captured for a delivery, or
	// nil when none exists.
	GetByDelivery(ctx context.Context, deliveryID string) (*domain.Verification, error)

	// ListBySyncStatus returns verifications in the given sync state,
	// ordered by capture timestamp ascending. The result is a materialized
	// point-in-time snapshot: records captured after the call do not appear.
	ListBySyncStatus(ctx context.Context, status routedomain.SyncStatus) ([]domain.Verification, error)

	// MarkSynced records a successful push with the remote reference id.
	MarkSynced(ctx context.Context, id string, remoteEventID string) error

	// MarkFailed records a failed push attempt.
	MarkFailed(ctx context.Context, id string) error

	// CountBySyncStatus returns the number of verifications in the given sync state.
	CountBySyncStatus(ctx context.Context, status routedomain.SyncStatus) (int, error)
}
