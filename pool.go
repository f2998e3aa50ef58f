package paperjet

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pool sizing and timing defaults.
const (
	// DefaultPoolSize is the number of pre-warmed sessions kept ready.
	DefaultPoolSize = 10

	// DefaultAcquireTimeout bounds how long a caller waits for a free slot.
	DefaultAcquireTimeout = 5 * time.Second

	// resetTimeout bounds the blank-page navigation that returns a session
	// to neutral state before reuse.
	resetTimeout = 5 * time.Second
)

// poolSlot is a fixed position in the pool holding one session and its
// metadata. The slot id is stable for the life of the pool; sessions come
// and go as they fail and are replaced.
type poolSlot struct {
	id         int
	session    Session
	inUse      bool
	failed     bool // session reported dead by the engine; replace before reuse
	lastUsedAt time.Time
}

// sessionPool is a fixed-capacity collection of rendering sessions.
//
// Waiting for a free slot is a channel semaphore: one token in avail per
// slot that is free and usable. The mutex guards only slot metadata; remote
// calls (reset, replace, close) always run outside it.
type sessionPool struct {
	capacity int
	timeout  time.Duration
	log      *zap.Logger

	mu     sync.Mutex
	slots  []*poolSlot
	create func(ctx context.Context) (Session, error) // bound to the current connection; nil when torn down
	avail  chan struct{}
}

func newSessionPool(capacity int, timeout time.Duration, log *zap.Logger) *sessionPool {
	if capacity < 1 {
		capacity = 1
	}

	return &sessionPool{
		capacity: capacity,
		timeout:  timeout,
		log:      log,
		avail:    make(chan struct{}, capacity),
	}
}

// fill builds one session per slot against the current connection.
// Called by the manager after the control connection is (re)established.
// On any creation failure the partial set is closed and the pool stays empty.
func (p *sessionPool) fill(ctx context.Context, create func(ctx context.Context) (Session, error)) error {
	sessions := make([]Session, 0, p.capacity)
	for i := 0; i < p.capacity; i++ {
		sess, err := create(ctx)
		if err != nil {
			for _, s := range sessions {
				_ = s.Close()
			}
			return fmt.Errorf("warming slot %d: %w", i, err)
		}
		sessions = append(sessions, sess)
	}

	p.mu.Lock()
	p.create = create
	p.slots = make([]*poolSlot, p.capacity)
	for i, sess := range sessions {
		p.slots[i] = &poolSlot{id: i, session: sess, lastUsedAt: time.Now()}
	}
	p.mu.Unlock()

	for range sessions {
		p.avail <- struct{}{}
	}
	return nil
}

// acquire returns a free session, waiting up to the configured timeout for
// one to become available. The timeout runs on the monotonic clock; there is
// no fairness ordering among waiters.
func (p *sessionPool) acquire(ctx context.Context) (Session, error) {
	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	for {
		select {
		case _, ok := <-p.avail:
			if !ok {
				return nil, ErrPoolClosed
			}
		case <-timer.C:
			return nil, fmt.Errorf("%w: after %v", ErrPoolTimeout, p.timeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		sess, replace := p.claim()
		if sess == nil {
			// Teardown raced us out of the slot backing this token.
			continue
		}
		if !replace {
			return sess, nil
		}

		// The engine reported this session dead while it sat free in the
		// pool; swap in a fresh one before handing the slot out.
		fresh, err := p.swap(ctx, sess)
		if err != nil {
			return nil, err
		}
		return fresh, nil
	}
}

// claim marks the first free slot in use and returns its session, plus
// whether the session must be replaced before use. A nil session means no
// free slot exists despite the token, which only happens when the pool was
// torn down concurrently.
func (p *sessionPool) claim() (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, slot := range p.slots {
		if slot.inUse || slot.session == nil {
			continue
		}
		slot.inUse = true
		slot.lastUsedAt = time.Now()
		return slot.session, slot.failed
	}
	return nil, false
}

// release returns a session to the pool. The session is reset to a neutral
// state first; when the reset fails the slot's session is replaced instead
// of returning a possibly-corrupted session to the pool.
func (p *sessionPool) release(ctx context.Context, sess Session) {
	p.mu.Lock()
	slot := p.slotOf(sess.ID())
	if slot == nil || !slot.inUse {
		// The slot was already replaced or torn down underneath the
		// holder; nothing left to return.
		p.mu.Unlock()
		return
	}
	failed := slot.failed
	p.mu.Unlock()

	if !failed {
		resetCtx, cancel := context.WithTimeout(ctx, resetTimeout)
		err := sess.Reset(resetCtx)
		cancel()
		if err == nil {
			p.free(slot.id)
			return
		}
		p.log.Warn("session reset failed, replacing",
			zap.Int("slot", slot.id), zap.Error(err))
	}

	if _, err := p.swap(ctx, sess); err != nil {
		p.log.Error("slot replacement failed, slot out of service",
			zap.Int("slot", slot.id), zap.Error(err))
		return
	}
	p.free(slot.id)
}

// replaceFailed handles an asynchronous session-death notification from the
// engine, identified by the stable session id. Only the owning slot is
// touched; connection-level loss is the manager's business.
func (p *sessionPool) replaceFailed(ctx context.Context, sessionID string) {
	p.mu.Lock()
	slot := p.slotOf(sessionID)
	if slot == nil {
		// Probe session, or a slot we already replaced. Ignore.
		p.mu.Unlock()
		return
	}
	slot.failed = true
	if slot.inUse {
		// The in-flight holder will fail on its own; its release path
		// performs the replacement.
		p.mu.Unlock()
		return
	}

	// The slot is free, so a token for it is in circulation. Consume one to
	// take the slot out of play while we replace its session; if every
	// token is momentarily held by a racing acquirer, that acquirer will
	// see the failed marker and replace inline instead.
	select {
	case <-p.avail:
		slot.inUse = true
	default:
		p.mu.Unlock()
		return
	}
	sess := slot.session
	p.mu.Unlock()

	if _, err := p.swap(ctx, sess); err != nil {
		p.log.Error("slot replacement failed, slot out of service",
			zap.Int("slot", slot.id), zap.Error(err))
		return
	}
	p.free(slot.id)
}

// swap installs a freshly created session in the slot currently holding
// sess, closing the old session best-effort. The slot is left in use; the
// caller decides whether to free it or hand the new session out. On creation
// failure the slot is vacated and the pool shrinks until the next full
// reinitialization.
func (p *sessionPool) swap(ctx context.Context, sess Session) (Session, error) {
	p.mu.Lock()
	slot := p.slotOf(sess.ID())
	create := p.create
	if slot == nil || create == nil {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	slot.session = nil
	slot.failed = false
	p.mu.Unlock()

	_ = sess.Close()

	fresh, err := create(ctx)
	if err != nil {
		p.mu.Lock()
		slot.inUse = false
		p.mu.Unlock()
		return nil, fmt.Errorf("replacing slot %d: %w", slot.id, err)
	}

	p.mu.Lock()
	if p.create == nil {
		// Torn down while we were replacing; the slot no longer exists.
		p.mu.Unlock()
		_ = fresh.Close()
		return nil, ErrPoolClosed
	}
	slot.session = fresh
	slot.lastUsedAt = time.Now()
	p.mu.Unlock()
	return fresh, nil
}

// free marks the slot available and publishes a token for waiters.
func (p *sessionPool) free(id int) {
	p.mu.Lock()
	if p.slots == nil {
		p.mu.Unlock()
		return
	}
	for _, slot := range p.slots {
		if slot.id == id {
			slot.inUse = false
			slot.lastUsedAt = time.Now()
			break
		}
	}
	p.mu.Unlock()

	p.avail <- struct{}{}
}

// teardown removes every session from the pool and closes them best-effort,
// draining availability tokens so waiters cannot claim vacated slots.
// Returns the sessions' aggregated close error for logging only.
func (p *sessionPool) teardown() error {
	p.mu.Lock()
	var sessions []Session
	for _, slot := range p.slots {
		if slot.session != nil {
			sessions = append(sessions, slot.session)
		}
		slot.session = nil
		slot.inUse = false
		slot.failed = false
	}
	p.slots = nil
	p.create = nil
	p.mu.Unlock()

	for {
		select {
		case <-p.avail:
			continue
		default:
		}
		break
	}

	var errs []error
	for _, sess := range sessions {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// slotOf returns the slot whose session has the given id. Caller holds mu.
func (p *sessionPool) slotOf(sessionID string) *poolSlot {
	for _, slot := range p.slots {
		if slot.session != nil && slot.session.ID() == sessionID {
			return slot
		}
	}
	return nil
}

// stats reports slot occupancy under the metadata lock.
func (p *sessionPool) stats() (capacity, inUse, usable int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, slot := range p.slots {
		if slot.inUse {
			inUse++
		}
		if slot.session != nil {
			usable++
		}
	}
	return p.capacity, inUse, usable
}
