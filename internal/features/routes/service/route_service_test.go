package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"delivery-verification/internal/features/routes/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRouteRepository is a mock implementation of RouteRepository for testing.
type mockRouteRepository struct {
	routes      map[string]*domain.Route
	saveError   error
	listError   error
	updateCalls []string
}

func newMockRouteRepository() *mockRouteRepository {
	return &mockRouteRepository{routes: make(map[string]*domain.Route)}
}

// SaveRoute implements RouteRepository.
func (m *mockRouteRepository) SaveRoute(ctx context.Context, route *domain.Route) error {
	if m.saveError != nil {
		return m.saveError
	}
	m.routes[route.ID] = route
	return nil
}

// ListRoutes implements RouteRepository.
func (m *mockRouteRepository) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	routes := make([]domain.Route, 0, len(m.routes))
	for _, r := range m.routes {
		routes = append(routes, *r)
	}
	return routes, nil
}

// ListRoutesByStatus implements RouteRepository.
func (m *mockRouteRepository) ListRoutesByStatus(ctx context.Context, status domain.RouteStatus) ([]domain.Route, error) {
	routes := make([]domain.Route, 0)
	for _, r := range m.routes {
		if r.Status == status {
			routes = append(routes, *r)
		}
	}
	return routes, nil
}

// GetRoute implements RouteRepository.
func (m *mockRouteRepository) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	return m.routes[id], nil
}

// UpdateRouteStatus implements RouteRepository.
func (m *mockRouteRepository) UpdateRouteStatus(ctx context.Context, id string, status domain.RouteStatus) error {
	route, ok := m.routes[id]
	if !ok {
		return sql.ErrNoRows
	}
	route.Status = status
	m.updateCalls = append(m.updateCalls, id)
	return nil
}

// DeleteRoute implements RouteRepository.
func (m *mockRouteRepository) DeleteRoute(ctx context.Context, id string) error {
	if _, ok := m.routes[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.routes, id)
	return nil
}

// GetDelivery implements RouteRepository.
func (m *mockRouteRepository) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	for _, r := range m.routes {
		for i := range r.Deliveries {
			if r.Deliveries[i].ID == id {
				return &r.Deliveries[i], nil
			}
		}
	}
	return nil, nil
}

// ListDeliveriesByStatus implements RouteRepository.
func (m *mockRouteRepository) ListDeliveriesByStatus(ctx context.Context, routeID string, status domain.DeliveryStatus) ([]domain.Delivery, error) {
	return nil, nil
}

// UpdateDeliveryStatus implements RouteRepository.
func (m *mockRouteRepository) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	for _, r := range m.routes {
		for i := range r.Deliveries {
			if r.Deliveries[i].ID == id {
				r.Deliveries[i].Status = status
				return nil
			}
		}
	}
	return sql.ErrNoRows
}

// mockRouteSource is a mock implementation of RouteSource for testing.
type mockRouteSource struct {
	routes      []domain.Route
	returnError error
}

// FetchRoutes implements RouteSource.
func (m *mockRouteSource) FetchRoutes(ctx context.Context) ([]domain.Route, error) {
	if m.returnError != nil {
		return nil, m.returnError
	}
	return m.routes, nil
}

// mockCache is a minimal in-memory Cache implementation for testing.
type mockCache struct {
	entries map[string][]byte
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{entries: make(map[string][]byte)}
}

// Get implements Cache.
func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.entries[key]
	if !ok {
		return nil, nil
	}
	return data, nil
}

// Set implements Cache.
func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.entries[key] = value
	return nil
}

// Delete implements Cache.
func (m *mockCache) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	m.deletes++
	return nil
}

// Ping implements Cache.
func (m *mockCache) Ping(ctx context.Context) error { return nil }

// Close implements Cache.
func (m *mockCache) Close() error { return nil }

func plannedRoute(id string) domain.Route {
	return domain.Route{
		ID:          id,
		RouteRef:    id,
		VehicleType: "VAN",
		TotalStops:  1,
		Status:      domain.RouteStatusPending,
		SyncStatus:  domain.SyncStatusSynced,
		CreatedAt:   time.Now().UTC(),
		Deliveries: []domain.Delivery{
			{
				ID:         id + "-d1",
				RouteID:    id,
				FacilityID: "FAC1",
				StopNumber: 1,
				Status:     domain.DeliveryStatusPending,
				SyncStatus: domain.SyncStatusSynced,
			},
		},
	}
}

// TestRouteService_ImportRoutes verifies fetched routes are stored and
// already known routes are skipped.
func TestRouteService_ImportRoutes(t *testing.T) {
	repo := newMockRouteRepository()
	source := &mockRouteSource{routes: []domain.Route{plannedRoute("ROUTE-001"), plannedRoute("ROUTE-002")}}
	svc := NewRouteService(repo, source, newMockCache())

	imported, err := svc.ImportRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, imported)
	assert.Len(t, repo.routes, 2)

	// A second import of the same plan is a no-op.
	imported, err = svc.ImportRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, imported)
}

// TestRouteService_ImportRoutes_FetchError verifies fetch failures surface.
func TestRouteService_ImportRoutes_FetchError(t *testing.T) {
	source := &mockRouteSource{returnError: errors.New("connection refused")}
	svc := NewRouteService(newMockRouteRepository(), source, newMockCache())

	imported, err := svc.ImportRoutes(context.Background())

	assert.Equal(t, 0, imported)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to fetch routes")
}

// TestRouteService_ListRoutes_Caching verifies the list is cached and the
// cached copy is served on the next call.
func TestRouteService_ListRoutes_Caching(t *testing.T) {
	repo := newMockRouteRepository()
	cache := newMockCache()
	route := plannedRoute("ROUTE-001")
	repo.routes[route.ID] = &route
	svc := NewRouteService(repo, &mockRouteSource{}, cache)

	first, err := svc.ListRoutes(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Contains(t, cache.entries, "route_list")

	// Serve from cache even when storage would now fail.
	repo.listError = errors.New("db closed")
	second, err := svc.ListRoutes(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// TestRouteService_StatusTransitions verifies transitions invalidate the
// cached list and unknown ids map to the not-found sentinels.
func TestRouteService_StatusTransitions(t *testing.T) {
	repo := newMockRouteRepository()
	cache := newMockCache()
	route := plannedRoute("ROUTE-001")
	repo.routes[route.ID] = &route
	svc := NewRouteService(repo, &mockRouteSource{}, cache)
	ctx := context.Background()

	require.NoError(t, svc.StartRoute(ctx, "ROUTE-001"))
	assert.Equal(t, domain.RouteStatusInProgress, repo.routes["ROUTE-001"].Status)
	assert.Equal(t, 1, cache.deletes)

	require.NoError(t, svc.CompleteRoute(ctx, "ROUTE-001"))
	assert.Equal(t, domain.RouteStatusCompleted, repo.routes["ROUTE-001"].Status)

	assert.ErrorIs(t, svc.StartRoute(ctx, "ghost"), ErrRouteNotFound)
	assert.ErrorIs(t, svc.UpdateDeliveryStatus(ctx, "ghost", domain.DeliveryStatusFailed), ErrDeliveryNotFound)

	require.NoError(t, svc.UpdateDeliveryStatus(ctx, "ROUTE-001-d1", domain.DeliveryStatusInProgress))
	assert.Equal(t, domain.DeliveryStatusInProgress, repo.routes["ROUTE-001"].Deliveries[0].Status)
}

// TestRouteService_GetRoute verifies the not-found sentinel.
func TestRouteService_GetRoute(t *testing.T) {
	repo := newMockRouteRepository()
	route := plannedRoute("ROUTE-001")
	repo.routes[route.ID] = &route
	svc := NewRouteService(repo, &mockRouteSource{}, newMockCache())

	got, err := svc.GetRoute(context.Background(), "ROUTE-001")
	require.NoError(t, err)
	assert.Equal(t, "ROUTE-001", got.ID)

	_, err = svc.GetRoute(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrRouteNotFound)
}

// TestRouteService_DeleteRoute verifies deletion and cache invalidation.
func TestRouteService_DeleteRoute(t *testing.T) {
	repo := newMockRouteRepository()
	cache := newMockCache()
	route := plannedRoute("ROUTE-001")
	repo.routes[route.ID] = &route
	svc := NewRouteService(repo, &mockRouteSource{}, cache)

	require.NoError(t, svc.DeleteRoute(context.Background(), "ROUTE-001"))
	assert.Empty(t, repo.routes)
	assert.Equal(t, 1, cache.deletes)

	assert.ErrorIs(t, svc.DeleteRoute(context.Background(), "ROUTE-001"), ErrRouteNotFound)
}
