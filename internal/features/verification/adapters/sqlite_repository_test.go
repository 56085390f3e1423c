package adapters

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"delivery-verification/internal/core/storage"
	routeadapters "delivery-verification/internal/features/routes/adapters"
	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/verification/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) (*SQLiteVerificationRepository, *sql.DB) {
	t.Helper()

	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	routeRepo := routeadapters.NewSQLiteRouteRepository(db)
	route := &routedomain.Route{
		ID:          "r1",
		RouteRef:    "RT-1",
		VehicleType: "TRUCK",
		TotalStops:  1,
		Status:      routedomain.RouteStatusInProgress,
		SyncStatus:  routedomain.SyncStatusSynced,
		CreatedAt:   time.Now().UTC(),
		Deliveries: []routedomain.Delivery{
			{
				ID:           "d1",
				RouteID:      "r1",
				FacilityID:   "FAC1",
				FacilityName: "Clinic A",
				Latitude:     -1.29,
				Longitude:    36.81,
				OrderVolume:  8,
				OrderWeight:  600,
				StopNumber:   1,
				Status:       routedomain.DeliveryStatusInProgress,
				SyncStatus:   routedomain.SyncStatusSynced,
			},
		},
	}
	require.NoError(t, routeRepo.SaveRoute(context.Background(), route))

	return NewSQLiteVerificationRepository(db), db
}

func testVerification(id, deliveryID string, capturedAt time.Time) *domain.Verification {
	return &domain.Verification{
		ID:                 id,
		DeliveryID:         deliveryID,
		GPSLatitude:        -1.2901,
		GPSLongitude:       36.8102,
		GPSAccuracy:        9,
		DistanceFromTarget: 14,
		ActualVolume:       7.5,
		ActualWeight:       590,
		Comments:           "two boxes damaged",
		VerifiedAt:         capturedAt.UTC().Truncate(time.Millisecond),
		SyncStatus:         routedomain.SyncStatusPending,
	}
}

// TestCreateForDelivery verifies the atomic capture: verification inserted
// and parent delivery completed in one transaction.
func TestCreateForDelivery(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	v := testVerification("v1", "d1", time.Now())
	require.NoError(t, repo.CreateForDelivery(ctx, v))

	got, err := repo.GetByDelivery(ctx, "d1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v1", got.ID)
	assert.Equal(t, v.VerifiedAt, got.VerifiedAt)
	assert.Equal(t, "two boxes damaged", got.Comments)
	assert.Empty(t, got.Signature)
	assert.Equal(t, routedomain.SyncStatusPending, got.SyncStatus)

	var status string
	var verifiedAt sql.NullInt64
	require.NoError(t, db.QueryRow(
		`SELECT status, verified_at FROM deliveries WHERE id = 'd1'`).Scan(&status, &verifiedAt))
	assert.Equal(t, string(routedomain.DeliveryStatusCompleted), status)
	assert.True(t, verifiedAt.Valid)
	assert.Equal(t, v.VerifiedAt.UnixMilli(), verifiedAt.Int64)
}

// TestCreateForDelivery_UnknownDelivery verifies that capturing against an
// unknown delivery fails without creating an orphan record.
func TestCreateForDelivery_UnknownDelivery(t *testing.T) {
	repo, db := newTestRepository(t)

	err := repo.CreateForDelivery(context.Background(), testVerification("v1", "ghost", time.Now()))
	assert.ErrorIs(t, err, domain.ErrDeliveryNotFound)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM verifications`).Scan(&count))
	assert.Equal(t, 0, count)
}

// TestCreateForDelivery_AlreadyVerified verifies the at-most-one constraint.
func TestCreateForDelivery_AlreadyVerified(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateForDelivery(ctx, testVerification("v1", "d1", time.Now())))

	err := repo.CreateForDelivery(ctx, testVerification("v2", "d1", time.Now()))
	assert.ErrorIs(t, err, domain.ErrAlreadyVerified)
}

// TestCreateForDelivery_Atomicity forces the delivery update to fail and
// verifies that the verification insert is rolled back with it.
func TestCreateForDelivery_Atomicity(t *testing.T) {
	repo, db := newTestRepository(t)

	_, err := db.Exec(`CREATE TRIGGER force_update_failure
		BEFORE UPDATE ON deliveries
		BEGIN SELECT RAISE(ABORT, 'forced failure'); END`)
	require.NoError(t, err)

	err = repo.CreateForDelivery(context.Background(), testVerification("v1", "d1", time.Now()))
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM verifications`).Scan(&count))
	assert.Equal(t, 0, count, "verification row must not survive the failed delivery update")

	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM deliveries WHERE id = 'd1'`).Scan(&status))
	assert.Equal(t, string(routedomain.DeliveryStatusInProgress), status)
}

// TestListBySyncStatus_Order verifies ascending capture-timestamp ordering.
func TestListBySyncStatus_Order(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	// Two more deliveries so three verifications can coexist.
	for i, id := range []string{"d2", "d3"} {
		_, err := db.Exec(
			`INSERT INTO deliveries (id, route_id, facility_id, facility_name, latitude, longitude,
			 order_volume, order_weight, stop_number, distance_from_previous, status, sync_status)
			 VALUES (?, 'r1', 'FAC', 'Clinic', 0, 0, 1, 1, ?, 0, 'PENDING', 'SYNCED')`,
			id, i+2)
		require.NoError(t, err)
	}

	base := time.Now().Add(-time.Hour)
	// Insert out of chronological order.
	require.NoError(t, repo.CreateForDelivery(ctx, testVerification("v2", "d2", base.Add(20*time.Minute))))
	require.NoError(t, repo.CreateForDelivery(ctx, testVerification("v1", "d1", base.Add(5*time.Minute))))
	require.NoError(t, repo.CreateForDelivery(ctx, testVerification("v3", "d3", base.Add(40*time.Minute))))

	pending, err := repo.ListBySyncStatus(ctx, routedomain.SyncStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, []string{"v1", "v2", "v3"},
		[]string{pending[0].ID, pending[1].ID, pending[2].ID})
}

// TestMarkSyncedAndFailed verifies sync state transitions and the remote id.
func TestMarkSyncedAndFailed(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateForDelivery(ctx, testVerification("v1", "d1", time.Now())))

	require.NoError(t, repo.MarkSynced(ctx, "v1", "remote-123"))
	got, err := repo.GetByDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, routedomain.SyncStatusSynced, got.SyncStatus)
	assert.Equal(t, "remote-123", got.RemoteEventID)

	// Marking failed later keeps the stored remote id untouched.
	require.NoError(t, repo.MarkFailed(ctx, "v1"))
	got, err = repo.GetByDelivery(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, routedomain.SyncStatusFailed, got.SyncStatus)
	assert.Equal(t, "remote-123", got.RemoteEventID)

	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing"), sql.ErrNoRows)

	synced, err := repo.CountBySyncStatus(ctx, routedomain.SyncStatusSynced)
	require.NoError(t, err)
	assert.Equal(t, 0, synced)

	failed, err := repo.CountBySyncStatus(ctx, routedomain.SyncStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}
