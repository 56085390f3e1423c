package ports

import (
	"context"
	"errors"

	"delivery-verification/internal/features/sync/domain"
)

// ErrNoSession is returned when no authenticated session can be established.
var ErrNoSession = errors.New("no remote session available")

// SessionProvider yields the session used for remote calls. This is a
// Secondary Port (Driven Port).
type SessionProvider interface {
	// Session returns an authenticated session or ErrNoSession.
	Session(ctx context.Context) (*domain.Session, error)
}

// EventClient pushes verification events to the remote system. This is a
// Secondary Port (Driven Port).
type EventClient interface {
	// CreateEvent registers an event and returns the remote reference id.
	CreateEvent(ctx context.Context, session *domain.Session, event *domain.Event) (string, error)
	// Ping checks that the remote system is reachable with the session.
	Ping(ctx context.Context, session *domain.Session) error
}

// Connectivity reports whether the remote system is currently reachable.
type Connectivity interface {
	// Online returns true when a reconciliation pass has a chance to succeed.
	Online(ctx context.Context) bool
}
