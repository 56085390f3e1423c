package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"delivery-verification/internal/features/routes/domain"
)

// SQLiteRouteRepository implements ports.RouteRepository on the embedded
// sqlite store. Rows are mapped to domain records by explicit hand-written
// functions; returned records are snapshots, never shared references.
type SQLiteRouteRepository struct {
	db *sql.DB
}

// NewSQLiteRouteRepository creates a new SQLiteRouteRepository.
func NewSQLiteRouteRepository(db *sql.DB) *SQLiteRouteRepository {
	return &SQLiteRouteRepository{db: db}
}

const routeColumns = `id, route_ref, vehicle_type, total_stops, total_distance,
	total_volume, total_weight, status, sync_status, created_at`

const deliveryColumns = `id, route_id, facility_id, facility_name, latitude, longitude,
	order_volume, order_weight, stop_number, distance_from_previous, status,
	verified_at, sync_status`

// SaveRoute stores a route and its deliveries in one transaction.
func (r *SQLiteRouteRepository) SaveRoute(ctx context.Context, route *domain.Route) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO routes (`+routeColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		route.ID, route.RouteRef, route.VehicleType, route.TotalStops,
		route.TotalDistance, route.TotalVolume, route.TotalWeight,
		string(route.Status), string(route.SyncStatus), route.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert route: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO deliveries (`+deliveryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare delivery insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range route.Deliveries {
		var verifiedAt any
		if d.VerifiedAt != nil {
			verifiedAt = d.VerifiedAt.UnixMilli()
		}
		_, err = stmt.ExecContext(ctx,
			d.ID, route.ID, d.FacilityID, d.FacilityName, d.Latitude, d.Longitude,
			d.OrderVolume, d.OrderWeight, d.StopNumber, d.DistanceFromPrevious,
			string(d.Status), verifiedAt, string(d.SyncStatus),
		)
		if err != nil {
			return fmt.Errorf("failed to insert delivery %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit route: %w", err)
	}
	return nil
}

// ListRoutes returns all routes without their deliveries, newest first.
func (r *SQLiteRouteRepository) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	return r.queryRoutes(ctx,
		`SELECT `+routeColumns+` FROM routes ORDER BY created_at DESC`)
}

// ListRoutesByStatus returns routes in the given lifecycle state.
func (r *SQLiteRouteRepository) ListRoutesByStatus(ctx context.Context, status domain.RouteStatus) ([]domain.Route, error) {
	return r.queryRoutes(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE status = ? ORDER BY created_at DESC`,
		string(status))
}

func (r *SQLiteRouteRepository) queryRoutes(ctx context.Context, query string, args ...any) ([]domain.Route, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routes: %w", err)
	}
	defer rows.Close()

	routes := make([]domain.Route, 0)
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, *route)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read routes: %w", err)
	}
	return routes, nil
}

// GetRoute returns a route with its deliveries ordered by stop number.
func (r *SQLiteRouteRepository) GetRoute(ctx context.Context, id string) (*domain.Route, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+routeColumns+` FROM routes WHERE id = ?`, id)

	route, err := scanRoute(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	deliveries, err := r.queryDeliveries(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE route_id = ? ORDER BY stop_number ASC`,
		id)
	if err != nil {
		return nil, err
	}
	route.Deliveries = deliveries

	return route, nil
}

// UpdateRouteStatus transitions the lifecycle state of a route.
func (r *SQLiteRouteRepository) UpdateRouteStatus(ctx context.Context, id string, status domain.RouteStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE routes SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update route status: %w", err)
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

// DeleteRoute removes a route, its deliveries and their verifications in
// one transaction. The cascade is explicit: children first, then the parent.
func (r *SQLiteRouteRepository) DeleteRoute(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM verifications
		 WHERE delivery_id IN (SELECT id FROM deliveries WHERE route_id = ?)`, id)
	if err != nil {
		return fmt.Errorf("failed to delete verifications of route %s: %w", id, err)
	}

	_, err = tx.ExecContext(ctx, `DELETE FROM deliveries WHERE route_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete deliveries of route %s: %w", id, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM routes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete route %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit delete: %w", err)
	}
	return nil
}

// GetDelivery returns a single delivery, or nil when it does not exist.
func (r *SQLiteRouteRepository) GetDelivery(ctx context.Context, id string) (*domain.Delivery, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries WHERE id = ?`, id)

	delivery, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return delivery, nil
}

// ListDeliveriesByStatus returns the deliveries of a route in the given
// lifecycle state, ordered by stop number.
func (r *SQLiteRouteRepository) ListDeliveriesByStatus(ctx context.Context, routeID string, status domain.DeliveryStatus) ([]domain.Delivery, error) {
	return r.queryDeliveries(ctx,
		`SELECT `+deliveryColumns+` FROM deliveries
		 WHERE route_id = ? AND status = ? ORDER BY stop_number ASC`,
		routeID, string(status))
}

// UpdateDeliveryStatus transitions the lifecycle state of a delivery.
func (r *SQLiteRouteRepository) UpdateDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE deliveries SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update delivery status: %w", err)
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

func (r *SQLiteRouteRepository) queryDeliveries(ctx context.Context, query string, args ...any) ([]domain.Delivery, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := make([]domain.Delivery, 0)
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		deliveries = append(deliveries, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read deliveries: %w", err)
	}
	return deliveries, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRoute maps a routes row to a domain Route.
func scanRoute(row rowScanner) (*domain.Route, error) {
	var (
		route      domain.Route
		status     string
		syncStatus string
		createdAt  int64
	)
	err := row.Scan(
		&route.ID, &route.RouteRef, &route.VehicleType, &route.TotalStops,
		&route.TotalDistance, &route.TotalVolume, &route.TotalWeight,
		&status, &syncStatus, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan route: %w", err)
	}

	route.Status = domain.RouteStatus(status)
	route.SyncStatus = domain.SyncStatus(syncStatus)
	route.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &route, nil
}

// scanDelivery maps a deliveries row to a domain Delivery.
func scanDelivery(row rowScanner) (*domain.Delivery, error) {
	var (
		d          domain.Delivery
		status     string
		syncStatus string
		verifiedAt sql.NullInt64
	)
	err := row.Scan(
		&d.ID, &d.RouteID, &d.FacilityID, &d.FacilityName, &d.Latitude, &d.Longitude,
		&d.OrderVolume, &d.OrderWeight, &d.StopNumber, &d.DistanceFromPrevious,
		&status, &verifiedAt, &syncStatus,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan delivery: %w", err)
	}

	d.Status = domain.DeliveryStatus(status)
	d.SyncStatus = domain.SyncStatus(syncStatus)
	if verifiedAt.Valid {
		t := time.UnixMilli(verifiedAt.Int64).UTC()
		d.VerifiedAt = &t
	}
	return &d, nil
}
