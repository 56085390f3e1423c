package domain

import (
	"time"

	routedomain "delivery-verification/internal/features/routes/domain"
)

// Verification is the immutable evidence record for one delivery.
// After creation only SyncStatus and RemoteEventID change; every
// evidentiary field is write-once.
type Verification struct {
	// ID is the local unique identifier of the verification.
	ID string `json:"id"`
	// DeliveryID is the identifier of the verified delivery.
	DeliveryID string `json:"delivery_id"`
	// GPSLatitude is the device latitude at capture time.
	GPSLatitude float64 `json:"gps_latitude"`
	// GPSLongitude is the device longitude at capture time.
	GPSLongitude float64 `json:"gps_longitude"`
	// GPSAccuracy is the reported accuracy of the fix in meters.
	GPSAccuracy float64 `json:"gps_accuracy"`
	// DistanceFromTarget is the computed distance to the facility in meters.
	DistanceFromTarget float64 `json:"distance_from_target"`
	// ActualVolume is the measured cargo volume at the stop.
	ActualVolume float64 `json:"actual_volume"`
	// ActualWeight is the measured cargo weight at the stop.
	ActualWeight float64 `json:"actual_weight"`
	// Comments are optional free-text notes from the driver.
	Comments string `json:"comments,omitempty"`
	// Signature is an optional base64-encoded signature image.
	Signature string `json:"signature,omitempty"`
	// PhotoRef is an optional reference to a captured photo.
	PhotoRef string `json:"photo_ref,omitempty"`
	// VerifiedAt is the capture timestamp.
	VerifiedAt time.Time `json:"verified_at"`
	// RemoteEventID is the remote record reference assigned after a
	// successful push, empty until then.
	RemoteEventID string `json:"remote_event_id,omitempty"`
	// SyncStatus describes whether the evidence reached the remote system.
	SyncStatus routedomain.SyncStatus `json:"sync_status"`
}

// Location is a GPS fix captured by the device.
type Location struct {
	// Latitude of the fix.
	Latitude float64 `json:"latitude"`
	// Longitude of the fix.
	Longitude float64 `json:"longitude"`
	// AccuracyMeters is the reported accuracy radius of the fix.
	AccuracyMeters float64 `json:"accuracy_meters"`
	// Timestamp is when the fix was acquired.
	Timestamp time.Time `json:"timestamp"`
}
