package ports

import (
	"context"
	"errors"

	"delivery-verification/internal/features/verification/domain"
)

// ErrNoFix is returned when the source is reachable but no usable GPS fix
// arrived within the configured window.
var ErrNoFix = errors.New("no GPS fix available")

// ErrSourceUnavailable is returned when the position source cannot be reached.
var ErrSourceUnavailable = errors.New("position source unavailable")

// Provider supplies the current device position. This is a Secondary Port
// (Driven Port).
type Provider interface {
	// CurrentFix blocks until a usable fix arrives or the context or the
	// provider's own fix window expires.
	CurrentFix(ctx context.Context) (*domain.Location, error)

	// Watch streams fixes as they arrive until the context is cancelled.
	// The returned channel is closed when the stream ends.
	Watch(ctx context.Context) (<-chan domain.Location, error)
}
