package domain

import (
	"fmt"
	"math"
)

// earthRadiusMeters is the mean Earth radius used by the haversine formula.
const earthRadiusMeters = 6371000.0

// Default validation thresholds. Deployments can tighten or loosen them
// through configuration.
const (
	// DefaultMaxAccuracyMeters is the worst acceptable GPS accuracy.
	DefaultMaxAccuracyMeters = 50.0
	// DefaultMaxDistanceMeters is the farthest acceptable distance from the target.
	DefaultMaxDistanceMeters = 100.0
)

// ValidationStatus classifies whether a captured position is usable as
// proof of presence.
type ValidationStatus string

const (
	// ValidationValid indicates the fix is acceptable for capture.
	ValidationValid ValidationStatus = "VALID"
	// ValidationNoLocation indicates no GPS fix is available.
	ValidationNoLocation ValidationStatus = "NO_LOCATION"
	// ValidationPoorAccuracy indicates the fix is too imprecise.
	ValidationPoorAccuracy ValidationStatus = "POOR_ACCURACY"
	// ValidationTooFar indicates the device is too far from the target.
	ValidationTooFar ValidationStatus = "TOO_FAR_FROM_TARGET"
)

// ValidationResult is the outcome of validating a position against a target.
type ValidationResult struct {
	// Status classifies the fix.
	Status ValidationStatus `json:"status"`
	// DistanceMeters is the computed distance to the target, 0 without a fix.
	DistanceMeters float64 `json:"distance_meters"`
	// Message is a short human-readable explanation.
	Message string `json:"message"`
}

// Valid reports whether the position may be used for a capture.
func (r ValidationResult) Valid() bool {
	return r.Status == ValidationValid
}

// Validator gates whether a captured position is usable as proof of
// presence. It is a pure function of its inputs.
type Validator struct {
	// MaxAccuracyMeters is the worst acceptable accuracy of a fix.
	MaxAccuracyMeters float64
	// MaxDistanceMeters is the farthest acceptable distance from the target.
	MaxDistanceMeters float64
}

// NewValidator creates a Validator with the default thresholds.
func NewValidator() Validator {
	return Validator{
		MaxAccuracyMeters: DefaultMaxAccuracyMeters,
		MaxDistanceMeters: DefaultMaxDistanceMeters,
	}
}

// Validate checks a position against the delivery target.
// Accuracy is checked before distance, so an imprecise fix reports
// POOR_ACCURACY even when it is also too far away. Both thresholds are
// inclusive: a fix exactly at the limit passes.
func (v Validator) Validate(current *Location, targetLat, targetLon float64) ValidationResult {
	if current == nil {
		return ValidationResult{
			Status:         ValidationNoLocation,
			DistanceMeters: 0,
			Message:        "No GPS location available",
		}
	}

	distance := Haversine(current.Latitude, current.Longitude, targetLat, targetLon)

	switch {
	case current.AccuracyMeters > v.MaxAccuracyMeters:
		return ValidationResult{
			Status:         ValidationPoorAccuracy,
			DistanceMeters: distance,
			Message: fmt.Sprintf("GPS accuracy too low: %dm (required: <%dm)",
				int(current.AccuracyMeters), int(v.MaxAccuracyMeters)),
		}
	case distance > v.MaxDistanceMeters:
		return ValidationResult{
			Status:         ValidationTooFar,
			DistanceMeters: distance,
			Message: fmt.Sprintf("Too far from delivery location: %dm (max: %dm)",
				int(distance), int(v.MaxDistanceMeters)),
		}
	default:
		return ValidationResult{
			Status:         ValidationValid,
			DistanceMeters: distance,
			Message:        fmt.Sprintf("Location valid: %dm from target", int(distance)),
		}
	}
}

// Haversine returns the great-circle distance between two coordinates in meters.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRadians(lat1))*
			math.Cos(toRadians(lat2))*
			math.Pow(math.Sin(dLon/2), 2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusMeters * c
}

func toRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}
