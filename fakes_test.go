package paperjet

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Fake engine implementations for testing. The fake mirrors the collaborator
// contract closely enough to exercise pool and supervisor behavior without a
// browser.

type fakeEngine struct {
	mu           sync.Mutex
	connectCalls int
	connectErr   error
	conns        []*fakeConn
}

func (e *fakeEngine) Connect(ctx context.Context, addr string) (Conn, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.connectCalls++
	if e.connectErr != nil {
		return nil, e.connectErr
	}

	conn := &fakeConn{sessions: make(map[string]*fakeSession)}
	e.conns = append(e.conns, conn)
	return conn, nil
}

func (e *fakeEngine) calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connectCalls
}

func (e *fakeEngine) lastConn() *fakeConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.conns) == 0 {
		return nil
	}
	return e.conns[len(e.conns)-1]
}

type fakeConn struct {
	mu              sync.Mutex
	nextID          int
	created         int
	sessions        map[string]*fakeSession
	onDisconnect    func()
	onSessionClosed func(string)
	closed          bool

	newSessionErr error
	failNavigates int // sessions fail this many navigations in total
	renderDelay   time.Duration
	renderGauge   int // renders currently in flight
	renderPeak    int
}

func (c *fakeConn) NewSession(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.newSessionErr != nil {
		return nil, c.newSessionErr
	}
	c.nextID++
	c.created++
	sess := &fakeSession{id: fmt.Sprintf("sess-%d", c.nextID), conn: c}
	c.sessions[sess.id] = sess
	return sess, nil
}

func (c *fakeConn) OnDisconnect(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = fn
}

func (c *fakeConn) OnSessionClosed(fn func(string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSessionClosed = fn
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// dropConnection simulates a control-connection loss notification.
func (c *fakeConn) dropConnection() {
	c.mu.Lock()
	fn := c.onDisconnect
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// killSession simulates the engine reporting one session dead.
func (c *fakeConn) killSession(id string) {
	c.mu.Lock()
	fn := c.onSessionClosed
	c.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

func (c *fakeConn) sessionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.created
}

func (c *fakeConn) peakRenders() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.renderPeak
}

type fakeSession struct {
	id   string
	conn *fakeConn

	mu          sync.Mutex
	navigates   int
	renders     int
	resets      int
	closes      int
	navigateErr error
	resetErr    error
	renderErr   error
	lastURL     string
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	s.mu.Lock()
	s.navigates++
	s.lastURL = url
	err := s.navigateErr
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.conn.mu.Lock()
	if s.conn.failNavigates > 0 {
		s.conn.failNavigates--
		s.conn.mu.Unlock()
		return fmt.Errorf("%w: fake navigation failure", ErrNavigation)
	}
	s.conn.mu.Unlock()
	return nil
}

func (s *fakeSession) Render(ctx context.Context, opts *RenderOptions) ([]byte, error) {
	s.mu.Lock()
	s.renders++
	err := s.renderErr
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.conn.mu.Lock()
	s.conn.renderGauge++
	if s.conn.renderGauge > s.conn.renderPeak {
		s.conn.renderPeak = s.conn.renderGauge
	}
	delay := s.conn.renderDelay
	s.conn.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
		}
	}

	s.conn.mu.Lock()
	s.conn.renderGauge--
	s.conn.mu.Unlock()

	return []byte("%PDF-1.4 fake " + s.id), nil
}

func (s *fakeSession) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
	return s.resetErr
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeSession) counts() (navigates, renders, resets, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigates, s.renders, s.resets, s.closes
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
