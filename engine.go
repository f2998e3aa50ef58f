package paperjet

import (
	"context"
	"time"
)

// Engine abstracts the remote rendering engine to allow different backends.
// The production implementation is rod-backed (see rodEngine); tests inject
// fakes through WithEngine.
type Engine interface {
	// Connect opens the control connection to the engine at addr.
	Connect(ctx context.Context, addr string) (Conn, error)
}

// Conn is a live control connection to the rendering engine.
type Conn interface {
	// NewSession opens a fresh rendering session on a neutral page.
	NewSession(ctx context.Context) (Session, error)

	// OnDisconnect registers fn to be called once when the control
	// connection is lost. Must be registered before sessions are created.
	OnDisconnect(fn func())

	// OnSessionClosed registers fn to be called whenever the engine
	// reports that a session died (crashed or was closed remotely).
	// The session is identified by its stable ID.
	OnSessionClosed(fn func(sessionID string))

	// Close tears down the control connection.
	Close() error
}

// Session is a single rendering context opened against the control
// connection. Sessions are not safe for concurrent use; the pool guarantees
// each session is held by at most one caller at a time.
type Session interface {
	// ID returns the engine-assigned stable identifier for this session.
	ID() string

	// Navigate loads url and waits for the full-load readiness signal,
	// failing if the page has not loaded within timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Render produces the PDF bytes for the currently loaded page.
	// A nil opts renders with defaults.
	Render(ctx context.Context, opts *RenderOptions) ([]byte, error)

	// Reset returns the session to a neutral state (blank page) so it can
	// be reused by the next caller.
	Reset(ctx context.Context) error

	// Close destroys the session. Best-effort; errors are advisory.
	Close() error
}
