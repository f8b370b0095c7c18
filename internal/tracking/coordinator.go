// Package tracking folds any number of overlapping operations into one
// "something is in flight" signal.
//
// Every token carries a safety timer. A token that is never ended is
// force-closed when its timer fires, so the busy signal cannot stay on
// forever because a caller skipped End on an error path. The timer only
// clears the signal; it does not cancel the operation behind the token.
package tracking

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSafetyTimeout is used when no timeout is configured.
const DefaultSafetyTimeout = 3 * time.Second

// GlobalToken stands in for an empty token.
const GlobalToken = "global"

type registration struct {
	timer *time.Timer
	gen   uint64
}

// Coordinator tracks an open set of tokens. The set is a set: beginning a
// token that is already open re-arms its timer without counting it twice.
type Coordinator struct {
	// notifyMu serializes transitions with their delivery so subscribers
	// see every change in order.
	notifyMu sync.Mutex

	mu      sync.Mutex
	open    map[string]*registration
	gen     uint64
	busy    bool
	subs    map[uint64]func(bool)
	nextSub uint64

	timeout   time.Duration
	logger    zerolog.Logger
	onTimeout func(token string)
}

type Option func(*Coordinator)

// WithSafetyTimeout overrides DefaultSafetyTimeout. Non-positive values are ignored.
func WithSafetyTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithTimeoutHook registers fn to run after a token is force-closed.
func WithTimeoutHook(fn func(token string)) Option {
	return func(c *Coordinator) { c.onTimeout = fn }
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		open:    make(map[string]*registration),
		subs:    make(map[uint64]func(bool)),
		timeout: DefaultSafetyTimeout,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Begin opens token, or re-arms its safety timer if it is already open.
func (c *Coordinator) Begin(token string) {
	token = normalize(token)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if reg, ok := c.open[token]; ok {
		reg.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.open[token] = &registration{
		gen:   gen,
		timer: time.AfterFunc(c.timeout, func() { c.expire(token, gen) }),
	}
	busy, subs, changed := c.recomputeLocked()
	c.mu.Unlock()

	deliver(subs, busy, changed)
}

// End closes token. Ending a token that is not open is a no-op.
func (c *Coordinator) End(token string) {
	token = normalize(token)

	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	if reg, ok := c.open[token]; ok {
		reg.timer.Stop()
		delete(c.open, token)
	}
	busy, subs, changed := c.recomputeLocked()
	c.mu.Unlock()

	deliver(subs, busy, changed)
}

// ResetAll cancels every pending timer and clears the open set.
func (c *Coordinator) ResetAll() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	for token, reg := range c.open {
		reg.timer.Stop()
		delete(c.open, token)
	}
	busy, subs, changed := c.recomputeLocked()
	c.mu.Unlock()

	deliver(subs, busy, changed)
}

// Close resets the coordinator and drops every subscriber.
func (c *Coordinator) Close() {
	c.ResetAll()

	c.mu.Lock()
	c.subs = make(map[uint64]func(bool))
	c.mu.Unlock()
}

// Busy reports whether any token is open.
func (c *Coordinator) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

// InFlight returns the number of open tokens.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open)
}

// Subscribe calls fn with the current value and then with every
// transition of the busy signal, in order. fn runs synchronously on the
// goroutine that caused the transition; it may call Busy or InFlight but
// must not call Begin, End, ResetAll or Subscribe.
func (c *Coordinator) Subscribe(fn func(busy bool)) (cancel func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	busy := c.busy
	c.mu.Unlock()

	fn(busy)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Coordinator) expire(token string, gen uint64) {
	c.notifyMu.Lock()

	c.mu.Lock()
	reg, ok := c.open[token]
	if !ok || reg.gen != gen {
		// ended or re-armed since this timer was set
		c.mu.Unlock()
		c.notifyMu.Unlock()
		return
	}
	delete(c.open, token)
	busy, subs, changed := c.recomputeLocked()
	c.mu.Unlock()

	c.logger.Warn().
		Str("token", token).
		Dur("timeout", c.timeout).
		Msg("loading state forcibly cleared after timeout")

	deliver(subs, busy, changed)
	c.notifyMu.Unlock()

	if c.onTimeout != nil {
		c.onTimeout(token)
	}
}

// recomputeLocked must be called with c.mu held.
func (c *Coordinator) recomputeLocked() (bool, []func(bool), bool) {
	busy := len(c.open) > 0
	changed := busy != c.busy
	c.busy = busy
	if !changed {
		return busy, nil, false
	}

	subs := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return busy, subs, true
}

func deliver(subs []func(bool), busy, changed bool) {
	if !changed {
		return
	}
	for _, fn := range subs {
		fn(busy)
	}
}

func normalize(token string) string {
	if token == "" {
		return GlobalToken
	}
	return token
}
