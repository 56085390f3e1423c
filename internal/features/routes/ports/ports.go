package ports

import (
	"context"

	"delivery-verification/internal/features/routes/domain"
)

// RouteRepository defines the durable local storage operations for routes
// and their deliveries. This is a Secondary Port (Driven Port).
type RouteRepository interface {
	// SaveRoute stores a route together with its deliveries in one transaction.
	SaveRoute(ctx context.Context, route *domain.Route) error
	// ListRoutes returns all routes without their deliveries, newest first.
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	// ListRoutesByStatus returns routes in the given lifecycle state.
	ListRoutesByStatus(ctx context.Context, status domain.RouteStatus) ([]domain.Route, error)
	// GetRoute returns a route with its deliveries ordered by stop number,
	// or nil when the route does not exist.
	GetRoute(ctx context.Context, id string) (*domain.Route, error)
	// UpdateRouteStatus transitions the lifecycle state of a route.
	UpdateRouteStatus(ctx context.Context, id string, status domain.RouteStatus) error
	// DeleteRoute removes a route, its deliveries and their verifications
	// in one transaction.
	DeleteRoute(ctx context.Context, id string) error
	// GetDelivery returns a single delivery, or nil when it does not exist.
	GetDelivery(ctx context.Context, id string) (*domain.Delivery, error)
	// ListDeliveriesByStatus returns the deliveries of a route in the given
	// lifecycle state, ordered by stop number.
	ListDeliveriesByStatus(ctx context.Context, routeID string, status domain.DeliveryStatus) ([]domain.Delivery, error)
	// UpdateDeliveryStatus transitions the lifecycle state of a delivery.
	UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error
}

// RouteSource fetches planned routes from the remote planning system.
// This is a Secondary Port (Driven Port).
type RouteSource interface {
	// FetchRoutes retrieves the routes planned for the current period.
	FetchRoutes(ctx context.Context) ([]domain.Route, error)
}
