package paperjet

import "errors"

// Sentinel errors for pool and capture operations.
var (
	// ErrConnection reports that the control connection to the rendering
	// engine could not be established or re-established. Once reconnection
	// attempts are exhausted this error is fatal to the pool.
	ErrConnection = errors.New("engine connection failed")

	// ErrPoolTimeout reports that no pooled session became available within
	// the configured acquire timeout. Callers may retry the whole request.
	ErrPoolTimeout = errors.New("timed out waiting for a pooled session")

	// ErrSessionFailed reports that a specific pooled session failed during
	// an operation. The pool replaces the session; the in-flight operation
	// still fails with this error.
	ErrSessionFailed = errors.New("pooled session failed")

	// ErrPoolClosed reports an operation against a closed manager.
	ErrPoolClosed = errors.New("session pool is closed")

	// Engine-level errors wrapped by the rod implementation.
	ErrEngineConnect = errors.New("failed to connect to rendering engine")
	ErrSessionCreate = errors.New("failed to create rendering session")
	ErrNavigation    = errors.New("failed to load target page")
	ErrRender        = errors.New("PDF generation failed")

	// Render option validation errors.
	ErrInvalidPageSize    = errors.New("invalid page size")
	ErrInvalidOrientation = errors.New("invalid orientation")
	ErrInvalidMargin      = errors.New("invalid margin")
	ErrInvalidScale       = errors.New("invalid scale")
	ErrEmptyURL           = errors.New("target url cannot be empty")
)
