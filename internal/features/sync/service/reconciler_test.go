package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	routedomain "delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/sync/domain"
	"delivery-verification/internal/features/sync/ports"
	verificationdomain "delivery-verification/internal/features/verification/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockVerificationStore is a mock verification repository for testing.
type mockVerificationStore struct {
	pending       []verificationdomain.Verification
	listError     error
	synced        map[string]string
	failed        map[string]bool
	markSyncError error
	markFailError error
}

func newMockVerificationStore(pending ...verificationdomain.Verification) *mockVerificationStore {
	return &mockVerificationStore{
		pending: pending,
		synced:  make(map[string]string),
		failed:  make(map[string]bool),
	}
}

// CreateForDelivery implements VerificationRepository.
func (m *mockVerificationStore) CreateForDelivery(ctx context.Context, v *verificationdomain.Verification) error {
	return nil
}

// GetByDelivery implements VerificationRepository.
func (m *mockVerificationStore) GetByDelivery(ctx context.Context, deliveryID string) (*verificationdomain.Verification, error) {
	return nil, nil
}

// ListBySyncStatus implements VerificationRepository.
func (m *mockVerificationStore) ListBySyncStatus(ctx context.Context, status routedomain.SyncStatus) ([]verificationdomain.Verification, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.pending, nil
}

// MarkSynced implements VerificationRepository.
func (m *mockVerificationStore) MarkSynced(ctx context.Context, id string, remoteEventID string) error {
	if m.markSyncError != nil {
		return m.markSyncError
	}
	m.synced[id] = remoteEventID
	return nil
}

// MarkFailed implements VerificationRepository.
func (m *mockVerificationStore) MarkFailed(ctx context.Context, id string) error {
	if m.markFailError != nil {
		return m.markFailError
	}
	m.failed[id] = true
	return nil
}

// CountBySyncStatus implements VerificationRepository.
func (m *mockVerificationStore) CountBySyncStatus(ctx context.Context, status routedomain.SyncStatus) (int, error) {
	return 0, nil
}

// mockDeliveryReader is a mock DeliveryReader for testing.
type mockDeliveryReader struct {
	deliveries  map[string]*routedomain.Delivery
	returnError error
}

// GetDelivery implements DeliveryReader.
func (m *mockDeliveryReader) GetDelivery(ctx context.Context, id string) (*routedomain.Delivery, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.deliveries[id], nil
}

// mockSessionProvider is a mock SessionProvider for testing.
type mockSessionProvider struct {
	session     *domain.Session
	returnError error
}

// Session implements SessionProvider.
func (m *mockSessionProvider) Session(ctx context.Context) (*domain.Session, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.session, nil
}

// mockEventClient is a mock EventClient for testing.
type mockEventClient struct {
	events    []*domain.Event
	failFor   map[string]error
	nextID    int
	pingError error
}

func newMockEventClient() *mockEventClient {
	return &mockEventClient{failFor: make(map[string]error)}
}

// CreateEvent implements EventClient.
func (m *mockEventClient) CreateEvent(ctx context.Context, session *domain.Session, event *domain.Event) (string, error) {
	if err, ok := m.failFor[event.OrgUnit]; ok {
		return "", err
	}
	m.events = append(m.events, event)
	m.nextID++
	return fmt.Sprintf("remote-%d", m.nextID), nil
}

// Ping implements EventClient.
func (m *mockEventClient) Ping(ctx context.Context, session *domain.Session) error {
	return m.pingError
}

func pendingVerification(id, deliveryID string, capturedAt time.Time) verificationdomain.Verification {
	return verificationdomain.Verification{
		ID:                 id,
		DeliveryID:         deliveryID,
		GPSLatitude:        -1.2901,
		GPSLongitude:       36.8101,
		GPSAccuracy:        8,
		DistanceFromTarget: 14,
		ActualVolume:       7.5,
		ActualWeight:       590,
		Comments:           "two boxes damaged",
		VerifiedAt:         capturedAt,
		SyncStatus:         routedomain.SyncStatusPending,
	}
}

func deliveryFor(id, facilityID string) *routedomain.Delivery {
	return &routedomain.Delivery{
		ID:          id,
		RouteID:     "r1",
		FacilityID:  facilityID,
		OrderVolume: 8,
		OrderWeight: 600,
		StopNumber:  1,
	}
}

func newTestReconciler(store *mockVerificationStore, reader *mockDeliveryReader, sessions *mockSessionProvider, client ports.EventClient) *Reconciler {
	return NewReconciler(store, reader, sessions, client, "PROG1", "STAGE1")
}

// TestReconciler_Run_Success verifies a full pass pushes every pending
// record in capture order and stores the remote references.
func TestReconciler_Run_Success(t *testing.T) {
	base := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	store := newMockVerificationStore(
		pendingVerification("v1", "d1", base),
		pendingVerification("v2", "d2", base.Add(time.Minute)),
	)
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{
		"d1": deliveryFor("d1", "FAC1"),
		"d2": deliveryFor("d2", "FAC2"),
	}}
	client := newMockEventClient()
	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{BaseURL: "http://dhis2"}}, client)

	synced, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.Equal(t, "remote-1", store.synced["v1"])
	assert.Equal(t, "remote-2", store.synced["v2"])
	require.Len(t, client.events, 2)
	// Events go out in capture order.
	assert.Equal(t, "FAC1", client.events[0].OrgUnit)
	assert.Equal(t, "FAC2", client.events[1].OrgUnit)
}

// TestReconciler_Run_EventPayload verifies the remote event shape.
func TestReconciler_Run_EventPayload(t *testing.T) {
	capturedAt := time.Date(2026, 8, 15, 9, 30, 0, 0, time.UTC)
	store := newMockVerificationStore(pendingVerification("v1", "d1", capturedAt))
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{"d1": deliveryFor("d1", "FAC1")}}
	client := newMockEventClient()
	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{}}, client)

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, client.events, 1)
	event := client.events[0]
	assert.Equal(t, "PROG1", event.Program)
	assert.Equal(t, "STAGE1", event.ProgramStage)
	assert.Equal(t, "FAC1", event.OrgUnit)
	assert.Equal(t, "2026-08-15", event.EventDate)
	assert.Equal(t, domain.EventStatusCompleted, event.Status)
	require.NotNil(t, event.Coordinate)
	assert.InDelta(t, -1.2901, event.Coordinate.Latitude, 1e-9)

	values := make(map[string]string, len(event.DataValues))
	for _, dv := range event.DataValues {
		values[dv.DataElement] = dv.Value
	}
	assert.Equal(t, "7.5", values[domain.ElementActualVolume])
	assert.Equal(t, "8", values[domain.ElementOrderVolume])
	assert.Equal(t, fmt.Sprintf("%d", capturedAt.UnixMilli()), values[domain.ElementTimestamp])
	assert.Equal(t, "two boxes damaged", values[domain.ElementComments])
	// Optional evidence that was never captured is omitted entirely.
	assert.NotContains(t, values, domain.ElementSignature)
	assert.NotContains(t, values, domain.ElementPhoto)
}

// TestReconciler_Run_NoSession verifies the pass aborts before touching
// storage when no session exists.
func TestReconciler_Run_NoSession(t *testing.T) {
	store := newMockVerificationStore(pendingVerification("v1", "d1", time.Now()))
	r := newTestReconciler(store, &mockDeliveryReader{}, &mockSessionProvider{returnError: ports.ErrNoSession}, newMockEventClient())

	synced, err := r.Run(context.Background())

	assert.Equal(t, 0, synced)
	assert.ErrorIs(t, err, ErrRemoteUnavailable)
	assert.Empty(t, store.failed, "no record may change state when the pass cannot start")
	assert.Empty(t, store.synced)
}

// TestReconciler_Run_Empty verifies an empty backlog is a successful no-op.
func TestReconciler_Run_Empty(t *testing.T) {
	r := newTestReconciler(newMockVerificationStore(), &mockDeliveryReader{}, &mockSessionProvider{session: &domain.Session{}}, newMockEventClient())

	synced, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, synced)
}

// TestReconciler_Run_ItemIsolation verifies one failing record does not
// stop the records behind it.
func TestReconciler_Run_ItemIsolation(t *testing.T) {
	base := time.Now().UTC()
	store := newMockVerificationStore(
		pendingVerification("v1", "d1", base),
		pendingVerification("v2", "d2", base.Add(time.Minute)),
		pendingVerification("v3", "d3", base.Add(2*time.Minute)),
	)
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{
		"d1": deliveryFor("d1", "FAC1"),
		"d2": deliveryFor("d2", "FAC2"),
		"d3": deliveryFor("d3", "FAC3"),
	}}
	client := newMockEventClient()
	client.failFor["FAC2"] = errors.New("409 conflict")
	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{}}, client)

	synced, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, synced)
	assert.True(t, store.failed["v2"])
	assert.Contains(t, store.synced, "v1")
	assert.Contains(t, store.synced, "v3")
}

// TestReconciler_Run_MissingDelivery verifies orphaned evidence is parked
// as FAILED and the pass continues.
func TestReconciler_Run_MissingDelivery(t *testing.T) {
	base := time.Now().UTC()
	store := newMockVerificationStore(
		pendingVerification("v1", "ghost", base),
		pendingVerification("v2", "d2", base.Add(time.Minute)),
	)
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{
		"d2": deliveryFor("d2", "FAC2"),
	}}
	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{}}, newMockEventClient())

	synced, err := r.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, synced)
	assert.True(t, store.failed["v1"])
	assert.Contains(t, store.synced, "v2")
}

// TestReconciler_Run_MarkSyncedFailure verifies a storage write failure
// aborts the pass to avoid re-pushing an unrecorded success.
func TestReconciler_Run_MarkSyncedFailure(t *testing.T) {
	store := newMockVerificationStore(pendingVerification("v1", "d1", time.Now()))
	store.markSyncError = errors.New("disk full")
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{"d1": deliveryFor("d1", "FAC1")}}
	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{}}, newMockEventClient())

	synced, err := r.Run(context.Background())

	assert.Equal(t, 0, synced)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to mark v1 synced")
}

// TestReconciler_Run_Cancellation verifies cancellation is honored between
// items, never mid-item.
func TestReconciler_Run_Cancellation(t *testing.T) {
	base := time.Now().UTC()
	store := newMockVerificationStore(
		pendingVerification("v1", "d1", base),
		pendingVerification("v2", "d2", base.Add(time.Minute)),
	)
	reader := &mockDeliveryReader{deliveries: map[string]*routedomain.Delivery{
		"d1": deliveryFor("d1", "FAC1"),
		"d2": deliveryFor("d2", "FAC2"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancelOnFirst := &cancellingClient{inner: newMockEventClient(), cancel: cancel}

	r := newTestReconciler(store, reader, &mockSessionProvider{session: &domain.Session{}}, cancelOnFirst)

	synced, err := r.Run(ctx)

	assert.Equal(t, 1, synced, "the in-flight item completes before the pass stops")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, store.synced, "v1")
	assert.NotContains(t, store.synced, "v2")
}

// cancellingClient cancels the pass context during the first push.
type cancellingClient struct {
	inner  *mockEventClient
	cancel context.CancelFunc
	calls  int
}

// CreateEvent implements EventClient.
func (c *cancellingClient) CreateEvent(ctx context.Context, session *domain.Session, event *domain.Event) (string, error) {
	c.calls++
	if c.calls == 1 {
		c.cancel()
	}
	return c.inner.CreateEvent(ctx, session, event)
}

// Ping implements EventClient.
func (c *cancellingClient) Ping(ctx context.Context, session *domain.Session) error {
	return c.inner.Ping(ctx, session)
}
