package domain

import "time"

// RouteStatus represents the lifecycle state of a planned route.
type RouteStatus string

const (
	// RouteStatusPending indicates the route has not been started yet.
	RouteStatusPending RouteStatus = "PENDING"
	// RouteStatusInProgress indicates the driver is working the route.
	RouteStatusInProgress RouteStatus = "IN_PROGRESS"
	// RouteStatusCompleted indicates every stop has been handled.
	RouteStatusCompleted RouteStatus = "COMPLETED"
)

// DeliveryStatus represents the lifecycle state of a single stop.
type DeliveryStatus string

const (
	// DeliveryStatusPending indicates the stop has not been visited.
	DeliveryStatusPending DeliveryStatus = "PENDING"
	// DeliveryStatusInProgress indicates the driver is at the stop.
	DeliveryStatusInProgress DeliveryStatus = "IN_PROGRESS"
	// DeliveryStatusCompleted indicates the stop has been verified.
	DeliveryStatusCompleted DeliveryStatus = "COMPLETED"
	// DeliveryStatusFailed indicates the stop could not be completed.
	DeliveryStatusFailed DeliveryStatus = "FAILED"
)

// SyncStatus describes whether a record has been pushed to the remote
// system of record.
type SyncStatus string

const (
	// SyncStatusPending indicates the record has not been pushed yet.
	SyncStatusPending SyncStatus = "PENDING"
	// SyncStatusSynced indicates the record exists on the remote system.
	SyncStatusSynced SyncStatus = "SYNCED"
	// SyncStatusFailed indicates the last push attempt failed.
	SyncStatusFailed SyncStatus = "FAILED"
)

// Route represents a planned multi-stop trip.
type Route struct {
	// ID is the local unique identifier of the route.
	ID string `json:"id"`
	// RouteRef is the external route identifier from the planning system.
	RouteRef string `json:"route_ref"`
	// VehicleType is the vehicle assigned to the route (e.g., TRUCK).
	VehicleType string `json:"vehicle_type"`
	// TotalStops is the planned number of stops.
	TotalStops int `json:"total_stops"`
	// TotalDistance is the planned trip distance in kilometers.
	TotalDistance float64 `json:"total_distance"`
	// TotalVolume is the planned cargo volume.
	TotalVolume float64 `json:"total_volume"`
	// TotalWeight is the planned cargo weight.
	TotalWeight float64 `json:"total_weight"`
	// Status is the lifecycle state of the route.
	Status RouteStatus `json:"status"`
	// SyncStatus describes whether the route is known to the remote system.
	SyncStatus SyncStatus `json:"sync_status"`
	// CreatedAt is the time the route was stored locally.
	CreatedAt time.Time `json:"created_at"`
	// Deliveries are the stops of the route ordered by stop number.
	Deliveries []Delivery `json:"deliveries,omitempty"`
}

// Delivery represents one planned stop requiring physical verification.
type Delivery struct {
	// ID is the local unique identifier of the delivery.
	ID string `json:"id"`
	// RouteID is the identifier of the owning route.
	RouteID string `json:"route_id"`
	// FacilityID is the remote organisation unit receiving the delivery.
	FacilityID string `json:"facility_id"`
	// FacilityName is the display name of the facility.
	FacilityName string `json:"facility_name"`
	// Latitude is the target latitude of the facility.
	Latitude float64 `json:"latitude"`
	// Longitude is the target longitude of the facility.
	Longitude float64 `json:"longitude"`
	// OrderVolume is the ordered cargo volume for this stop.
	OrderVolume float64 `json:"order_volume"`
	// OrderWeight is the ordered cargo weight for this stop.
	OrderWeight float64 `json:"order_weight"`
	// StopNumber is the position of the stop within the route.
	// Stop numbers are unique per route and define the traversal order.
	StopNumber int `json:"stop_number"`
	// DistanceFromPrevious is the distance from the previous stop in kilometers.
	DistanceFromPrevious float64 `json:"distance_from_previous"`
	// Status is the lifecycle state of the stop.
	Status DeliveryStatus `json:"status"`
	// VerifiedAt is the capture time of the verification, if any.
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	// SyncStatus describes whether the delivery is known to the remote system.
	SyncStatus SyncStatus `json:"sync_status"`
}
