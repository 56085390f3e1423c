package domain

import "errors"

// ErrDeliveryNotFound is returned when a capture references an unknown delivery.
var ErrDeliveryNotFound = errors.New("delivery not found")

// ErrAlreadyVerified is returned when a delivery already has evidence.
// At most one verification exists per delivery; the local store enforces it.
var ErrAlreadyVerified = errors.New("delivery already verified")
