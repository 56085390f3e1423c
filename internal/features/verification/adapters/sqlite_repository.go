package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/verification/domain"
)

// SQLiteVerificationRepository implements ports.VerificationRepository on
// the embedded sqlite store.
type SQLiteVerificationRepository struct {
	db *sql.DB
}

// NewSQLiteVerificationRepository creates a new SQLiteVerificationRepository.
func NewSQLiteVerificationRepository(db *sql.DB) *SQLiteVerificationRepository {
	return &SQLiteVerificationRepository{db: db}
}

const verificationColumns = `id, delivery_id, gps_latitude, gps_longitude, gps_accuracy,
	distance_from_target, actual_volume, actual_weight, comments, signature,
	photo_ref, verified_at, remote_event_id, sync_status`

// CreateForDelivery inserts the verification and completes its parent
// delivery atomically. A storage failure on either write rolls both back.
func (r *SQLiteVerificationRepository) CreateForDelivery(ctx context.Context, v *domain.Verification) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var deliveryExists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deliveries WHERE id = ?`, v.DeliveryID).Scan(&deliveryExists)
	if err != nil {
		return fmt.Errorf("failed to look up delivery: %w", err)
	}
	if deliveryExists == 0 {
		return domain.ErrDeliveryNotFound
	}

	var existing int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifications WHERE delivery_id = ?`, v.DeliveryID).Scan(&existing)
	if err != nil {
		return fmt.Errorf("failed to look up existing verification: %w", err)
	}
	if existing > 0 {
		return domain.ErrAlreadyVerified
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO verifications (`+verificationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.DeliveryID, v.GPSLatitude, v.GPSLongitude, v.GPSAccuracy,
		v.DistanceFromTarget, v.ActualVolume, v.ActualWeight,
		nullableString(v.Comments), nullableString(v.Signature), nullableString(v.PhotoRef),
		v.VerifiedAt.UnixMilli(), nullableString(v.RemoteEventID), string(v.SyncStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to insert verification: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE deliveries SET status = ?, verified_at = ? WHERE id = ?`,
		string(routedomain.DeliveryStatusCompleted), v.VerifiedAt.UnixMilli(), v.DeliveryID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete delivery: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verification: %w", err)
	}
	return nil
}

// GetByDelivery returns the verification captured for a delivery.
func (r *SQLiteVerificationRepository) GetByDelivery(ctx context.Context, deliveryID string) (*domain.Verification, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications WHERE delivery_id = ?`, deliveryID)

	v, err := scanVerification(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ListBySyncStatus returns verifications in the given sync state ordered by
// capture timestamp ascending. The slice is a point-in-time snapshot.
func (r *SQLiteVerificationRepository) ListBySyncStatus(ctx context.Context, status routedomain.SyncStatus) ([]domain.Verification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+verificationColumns+` FROM verifications
		 WHERE sync_status = ? ORDER BY verified_at ASC`,
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	defer rows.Close()

	verifications := make([]domain.Verification, 0)
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, err
		}
		verifications = append(verifications, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read verifications: %w", err)
	}
	return verifications, nil
}

// MarkSynced records a successful push with the remote reference id.
func (r *SQLiteVerificationRepository) MarkSynced(ctx context.Context, id string, remoteEventID string) error {
	return r.updateSyncState(ctx, id, routedomain.SyncStatusSynced, remoteEventID)
}

// MarkFailed records a failed push attempt.
func (r *SQLiteVerificationRepository) MarkFailed(ctx context.Context, id string) error {
	return r.updateSyncState(ctx, id, routedomain.SyncStatusFailed, "")
}

func (r *SQLiteVerificationRepository) updateSyncState(ctx context.Context, id string, status routedomain.SyncStatus, remoteEventID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE verifications
		 SET sync_status = ?, remote_event_id = COALESCE(?, remote_event_id)
		 WHERE id = ?`,
		string(status), nullableString(remoteEventID), id)
	if err != nil {
		return fmt.Errorf("failed to update sync status of %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountBySyncStatus returns the number of verifications in the given sync state.
func (r *SQLiteVerificationRepository) CountBySyncStatus(ctx context.Context, status routedomain.SyncStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM verifications WHERE sync_status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count verifications: %w", err)
	}
	return count, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanVerification maps a verifications row to a domain Verification.
func scanVerification(row rowScanner) (*domain.Verification, error) {
	var (
		v             domain.Verification
		comments      sql.NullString
		signature     sql.NullString
		photoRef      sql.NullString
		remoteEventID sql.NullString
		verifiedAt    int64
		syncStatus    string
	)
	err := row.Scan(
		&v.ID, &v.DeliveryID, &v.GPSLatitude, &v.GPSLongitude, &v.GPSAccuracy,
		&v.DistanceFromTarget, &v.ActualVolume, &v.ActualWeight,
		&comments, &signature, &photoRef, &verifiedAt, &remoteEventID, &syncStatus,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan verification: %w", err)
	}

	v.Comments = comments.String
	v.Signature = signature.String
	v.PhotoRef = photoRef.String
	v.RemoteEventID = remoteEventID.String
	v.VerifiedAt = time.UnixMilli(verifiedAt).UTC()
	v.SyncStatus = routedomain.SyncStatus(syncStatus)
	return &v, nil
}

// nullableString maps "" to NULL so optional evidence stays NULL in storage.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
