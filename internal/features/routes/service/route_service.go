package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"delivery-verification/internal/core/cache"
	"delivery-verification/internal/core/logger"
	"delivery-verification/internal/features/routes/domain"
	"delivery-verification/internal/features/routes/ports"

	"go.uber.org/zap"
)

// ErrRouteNotFound is returned when an operation references an unknown route.
var ErrRouteNotFound = errors.New("route not found")

// ErrDeliveryNotFound is returned when an operation references an unknown delivery.
var ErrDeliveryNotFound = errors.New("delivery not found")

const (
	routeListCacheKey = "route_list"
	routeListCacheTTL = 5 * time.Minute
)

// RouteService manages the local route inventory: importing planned routes
// from the remote system, serving them to clients and tracking lifecycle
// transitions. The route list is cached; every mutation invalidates it.
type RouteService struct {
	repo   ports.RouteRepository
	source ports.RouteSource
	cache  cache.Cache
	logger *zap.Logger
}

// NewRouteService creates a new RouteService.
func NewRouteService(repo ports.RouteRepository, source ports.RouteSource, c cache.Cache) *RouteService {
	return &RouteService{
		repo:   repo,
		source: source,
		cache:  c,
		logger: logger.Named("routes"),
	}
}

// ListRoutes returns all stored routes, newest first. Results are served
// from the cache when possible; cache failures degrade to a direct read.
func (s *RouteService) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	if data, err := s.cache.Get(ctx, routeListCacheKey); err == nil && data != nil {
		var routes []domain.Route
		if err := json.Unmarshal(data, &routes); err == nil {
			return routes, nil
		}
		// A corrupt entry is dropped and rebuilt from storage.
		_ = s.cache.Delete(ctx, routeListCacheKey)
	}

	routes, err := s.repo.ListRoutes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}

	if data, err := json.Marshal(routes); err == nil {
		if err := s.cache.Set(ctx, routeListCacheKey, data, routeListCacheTTL); err != nil {
			s.logger.Warn("Failed to cache route list", zap.Error(err))
		}
	}

	return routes, nil
}

// ListRoutesByStatus returns stored routes in the given lifecycle state.
func (s *RouteService) ListRoutesByStatus(ctx context.Context, status domain.RouteStatus) ([]domain.Route, error) {
	routes, err := s.repo.ListRoutesByStatus(ctx, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes by status: %w", err)
	}
	return routes, nil
}

// GetRoute returns a route with its deliveries in traversal order.
func (s *RouteService) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	route, err := s.repo.GetRoute(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get route: %w", err)
	}
	if route == nil {
		return nil, ErrRouteNotFound
	}
	return route, nil
}

// GetDelivery returns a single delivery.
func (s *RouteService) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	delivery, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	if delivery == nil {
		return nil, ErrDeliveryNotFound
	}
	return delivery, nil
}

// ImportRoutes fetches the planned routes from the remote system and stores
// them locally. Routes that already exist locally are skipped so in-progress
// work is never overwritten. Returns the number of newly stored routes.
func (s *RouteService) ImportRoutes(ctx context.Context) (int, error) {
	routes, err := s.source.FetchRoutes(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch routes: %w", err)
	}

	imported := 0
	for i := range routes {
		route := &routes[i]

		existing, err := s.repo.GetRoute(ctx, route.ID)
		if err != nil {
			return imported, fmt.Errorf("failed to check route %s: %w", route.ID, err)
		}
		if existing != nil {
			s.logger.Debug("Skipping already imported route", zap.String("route_id", route.ID))
			continue
		}

		if err := s.repo.SaveRoute(ctx, route); err != nil {
			return imported, fmt.Errorf("failed to store route %s: %w", route.ID, err)
		}
		imported++
	}

	if imported > 0 {
		s.invalidateRouteList(ctx)
	}

	s.logger.Info("Route import finished",
		zap.Int("fetched", len(routes)),
		zap.Int("imported", imported),
	)
	return imported, nil
}

// StartRoute transitions a route to IN_PROGRESS.
func (s *RouteService) StartRoute(ctx context.Context, id string) error {
	return s.updateRouteStatus(ctx, id, domain.RouteStatusInProgress)
}

// CompleteRoute transitions a route to COMPLETED.
func (s *RouteService) CompleteRoute(ctx context.Context, id string) error {
	return s.updateRouteStatus(ctx, id, domain.RouteStatusCompleted)
}

func (s *RouteService) updateRouteStatus(ctx context.Context, id string, status domain.RouteStatus) error {
	if err := s.repo.UpdateRouteStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRouteNotFound
		}
		return fmt.Errorf("failed to update route status: %w", err)
	}
	s.invalidateRouteList(ctx)
	return nil
}

// UpdateDeliveryStatus transitions the lifecycle state of a delivery.
func (s *RouteService) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	if err := s.repo.UpdateDeliveryStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDeliveryNotFound
		}
		return fmt.Errorf("failed to update delivery status: %w", err)
	}
	return nil
}

// DeleteRoute removes a route together with its deliveries and verifications.
func (s *RouteService) DeleteRoute(ctx context.Context, id string) error {
	if err := s.repo.DeleteRoute(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRouteNotFound
		}
		return fmt.Errorf("failed to delete route: %w", err)
	}
	s.invalidateRouteList(ctx)
	return nil
}

func (s *RouteService) invalidateRouteList(ctx context.Context) {
	if err := s.cache.Delete(ctx, routeListCacheKey); err != nil {
		s.logger.Warn("Failed to invalidate route list cache", zap.Error(err))
	}
}
