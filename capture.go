package paperjet

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// Capture renders the page at url to PDF using a pooled session, retrying
// transient failures up to the configured attempt count with no delay
// between attempts. Each retry may land on a different pooled session; the
// pool decides. Intermediate failures are only logged; on exhaustion the
// last error is returned.
func (m *Manager) Capture(ctx context.Context, url string, opts *RenderOptions) ([]byte, error) {
	if url == "" {
		return nil, ErrEmptyURL
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= m.cfg.captureAttempts; attempt++ {
		pdf, err := m.withSession(ctx, func(sess Session) ([]byte, error) {
			return m.render(ctx, sess, url, opts)
		})
		if err == nil {
			return pdf, nil
		}
		lastErr = err

		if ctx.Err() != nil || errors.Is(err, ErrPoolClosed) {
			break
		}
		m.log.Warn("capture attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", m.cfg.captureAttempts),
			zap.Error(err))
	}
	return nil, lastErr
}

// withSession runs action with an acquired session, releasing it on every
// exit path exactly once. The control connection is initialized lazily if
// the manager is not connected yet.
func (m *Manager) withSession(ctx context.Context, action func(Session) ([]byte, error)) (out []byte, err error) {
	m.mu.Lock()
	connected := m.state == stateConnected
	m.mu.Unlock()
	if !connected {
		if err := m.Initialize(ctx); err != nil {
			return nil, err
		}
	}

	sess, err := m.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer m.pool.release(context.WithoutCancel(ctx), sess)

	return action(sess)
}

// render is the concrete workflow against one session: navigate to the
// target with the full-load readiness policy, then request the PDF bytes.
// Failures propagate unmodified; classification and retry happen upstream.
func (m *Manager) render(ctx context.Context, sess Session, url string, opts *RenderOptions) ([]byte, error) {
	if err := sess.Navigate(ctx, url, m.cfg.navigateTimeout); err != nil {
		return nil, err
	}
	return sess.Render(ctx, opts)
}
