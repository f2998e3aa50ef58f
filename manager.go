package paperjet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Connection lifecycle defaults.
const (
	DefaultHealthCheckInterval = 3 * time.Second
	DefaultReconnectAttempts   = 3
	DefaultConnectTimeout      = 30 * time.Second

	// probeTimeout bounds one health-check probe: open a throw-away
	// session, navigate it to a neutral target, close it.
	probeTimeout = 10 * time.Second
)

// connState is the EngineConnection lifecycle state.
type connState int32

const (
	stateDisconnected connState = iota
	stateConnecting
	stateConnected
)

func (s connState) String() string {
	switch s {
	case stateConnecting:
		return "connecting"
	case stateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// engineEvent is an internal message posted from detection context (engine
// callbacks, probe failures) to the supervisor loop, which performs the
// actual pool mutation. Events are tagged with the connection generation so
// stale notifications from a torn-down connection are ignored.
type engineEvent struct {
	gen        uint64
	sessionID  string // set for session-failed events
	connLost   bool   // set for connection-loss events
	probeError error  // cause, logging only
}

// PoolStats is a point-in-time snapshot of the manager.
type PoolStats struct {
	State    string `json:"state"`
	Capacity int    `json:"capacity"`
	InUse    int    `json:"inUse"`
	Usable   int    `json:"usable"`
}

// Manager owns the control connection to the rendering engine and the pool
// of pre-warmed sessions created against it. It heals session-level failures
// by replacing single slots and connection-level failures by rebuilding the
// whole pool, retrying the connection a bounded number of times.
//
// A Manager is safe for concurrent use. Construct one per process and pass
// it to the request dispatcher.
type Manager struct {
	addr   string
	engine Engine
	cfg    managerConfig
	pool   *sessionPool
	log    *zap.Logger

	mu     sync.Mutex
	state  connState
	conn   Conn
	gen    uint64 // bumped on every successful connect
	closed bool

	healthCancel context.CancelFunc

	events chan engineEvent
	stop   chan struct{}
	done   chan struct{}
	fatal  chan error
}

// NewManager creates a Manager for the engine at addr. The control
// connection is established lazily on the first capture; use Initialize to
// warm the pool eagerly at startup.
func NewManager(addr string, opts ...Option) *Manager {
	cfg := defaultManagerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Manager{
		addr:   addr,
		engine: cfg.engine,
		cfg:    cfg,
		log:    cfg.logger,
		pool:   newSessionPool(cfg.poolSize, cfg.acquireTimeout, cfg.logger),
		events: make(chan engineEvent, 64),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		fatal:  make(chan error, 1),
	}

	go m.supervise()
	return m
}

// State returns the current connection state.
func (m *Manager) State() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.String()
}

// Stats returns a snapshot of connection state and slot occupancy.
func (m *Manager) Stats() PoolStats {
	capacity, inUse, usable := m.pool.stats()
	return PoolStats{
		State:    m.State(),
		Capacity: capacity,
		InUse:    inUse,
		Usable:   usable,
	}
}

// Fatal exposes the terminal error channel. It receives at most one error:
// the connection failure that survived every reconnection attempt. The
// process owner is expected to terminate or alert on it.
func (m *Manager) Fatal() <-chan error {
	return m.fatal
}

// Initialize establishes the control connection and warms the pool.
// It is idempotent: a call while the manager is connecting or connected is a
// no-op, which prevents duplicate concurrent connection attempts.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrPoolClosed
	}
	if m.state == stateConnected || m.state == stateConnecting {
		m.mu.Unlock()
		return nil
	}
	m.state = stateConnecting
	m.mu.Unlock()

	if err := m.connect(ctx); err != nil {
		m.mu.Lock()
		m.state = stateDisconnected
		m.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

// connect performs the full initialization sequence: open the control
// connection, register failure notification handlers, warm the pool, start
// the health-check loop. Caller has already moved state to connecting.
func (m *Manager) connect(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, m.cfg.connectTimeout)
	defer cancel()

	conn, err := m.engine.Connect(connectCtx, m.addr)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	conn.OnDisconnect(func() {
		m.post(engineEvent{gen: gen, connLost: true})
	})
	conn.OnSessionClosed(func(sessionID string) {
		m.post(engineEvent{gen: gen, sessionID: sessionID})
	})

	create := func(ctx context.Context) (Session, error) {
		return conn.NewSession(ctx)
	}
	if err := m.pool.fill(connectCtx, create); err != nil {
		_ = conn.Close()
		return err
	}

	healthCtx, healthCancel := context.WithCancel(context.Background())
	go m.healthLoop(healthCtx, conn, gen)

	m.mu.Lock()
	m.conn = conn
	m.healthCancel = healthCancel
	m.state = stateConnected
	m.mu.Unlock()

	m.log.Info("engine connected, pool warmed",
		zap.String("addr", m.addr), zap.Int("sessions", m.cfg.poolSize))
	return nil
}

// healthLoop probes the connection on a fixed interval for the lifetime of
// one connected generation. Each probe opens a throw-away session, navigates
// it to a neutral target and closes it; any failure is treated as connection
// loss. Probes run synchronously in this goroutine, so two can never
// overlap; ticks that fire while a probe is in flight are dropped.
func (m *Manager) healthLoop(ctx context.Context, conn Conn, gen uint64) {
	ticker := time.NewTicker(m.cfg.healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := m.probe(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return
			}
			m.log.Warn("health probe failed", zap.Error(err))
			m.post(engineEvent{gen: gen, connLost: true, probeError: err})
			return
		}

		// Drop any tick that fired while the probe was in flight.
		select {
		case <-ticker.C:
		default:
		}
	}
}

func (m *Manager) probe(ctx context.Context, conn Conn) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	sess, err := conn.NewSession(probeCtx)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	return sess.Reset(probeCtx)
}

// supervise is the single goroutine that mutates the pool in response to
// failure events, decoupling detection (engine callback context) from
// handling.
func (m *Manager) supervise() {
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		case ev := <-m.events:
			m.mu.Lock()
			stale := ev.gen != m.gen || m.state != stateConnected
			m.mu.Unlock()
			if stale {
				continue
			}

			if ev.connLost {
				m.reconnect()
				continue
			}

			m.log.Warn("session failed, replacing slot",
				zap.String("session", ev.sessionID))
			m.pool.replaceFailed(context.Background(), ev.sessionID)
		}
	}
}

// reconnect tears the pool down and retries initialization up to the
// configured attempt count. Exhausting the attempts is fatal: the error is
// published on Fatal and the manager stays disconnected.
func (m *Manager) reconnect() {
	m.log.Warn("engine connection lost, reinitializing pool")
	m.teardown()

	var lastErr error
	for attempt := 1; attempt <= m.cfg.reconnectAttempts; attempt++ {
		if attempt > 1 && m.cfg.reconnectBackoff > 0 {
			time.Sleep(m.cfg.reconnectBackoff)
		}
		if err := m.Initialize(context.Background()); err != nil {
			lastErr = err
			m.log.Warn("reconnection attempt failed",
				zap.Int("attempt", attempt),
				zap.Int("maxAttempts", m.cfg.reconnectAttempts),
				zap.Error(err))
			continue
		}
		m.log.Info("engine reconnected", zap.Int("attempt", attempt))
		return
	}

	err := fmt.Errorf("%w: giving up after %d attempts: %v",
		ErrConnection, m.cfg.reconnectAttempts, lastErr)
	m.log.Error("reconnection exhausted", zap.Error(err))
	select {
	case m.fatal <- err:
	default:
	}
}

// teardown cancels the health loop, closes every pooled session best-effort,
// clears the pool and resets state to disconnected.
func (m *Manager) teardown() {
	m.mu.Lock()
	conn := m.conn
	cancel := m.healthCancel
	m.conn = nil
	m.healthCancel = nil
	m.state = stateDisconnected
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if err := m.pool.teardown(); err != nil {
		m.log.Debug("closing pooled sessions", zap.Error(err))
	}
	if conn != nil {
		_ = conn.Close()
	}
}

// Close shuts the manager down: supervisor stopped, sessions and connection
// closed. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stop)
	<-m.done
	m.teardown()
	return nil
}

// post delivers an event to the supervisor without blocking the detection
// context. A full event queue drops the event; the health loop will rediscover
// a lost connection on its next probe.
func (m *Manager) post(ev engineEvent) {
	select {
	case m.events <- ev:
	case <-m.stop:
	default:
		m.log.Warn("supervisor event queue full, dropping event")
	}
}
