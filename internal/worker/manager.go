// Package worker keeps one chat orchestrator per client scope, evicts idle
// ones and propagates invalidations between instances.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"copydesk/internal/chat"
)

const defaultIdle = 30 * time.Minute

// Factory builds the orchestrator of scope, authenticated with token.
type Factory func(scope, token string) *chat.Orchestrator

type scopeState struct {
	orch     *chat.Orchestrator
	token    string
	lastUsed time.Time
}

type Manager struct {
	factory Factory
	idle    time.Duration
	bus     *InvalidationBus
	log     zerolog.Logger
	now     func() time.Time

	mu     sync.Mutex
	scopes map[string]*scopeState
}

type Option func(*Manager)

// WithIdle sets how long an unused orchestrator is kept.
func WithIdle(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.idle = d
		}
	}
}

// WithInvalidation broadcasts purges to, and accepts them from, other
// instances through the redis bus.
func WithInvalidation(bus *InvalidationBus) Option {
	return func(m *Manager) { m.bus = bus }
}

func NewManager(factory Factory, log zerolog.Logger, opts ...Option) *Manager {
	m := &Manager{
		factory: factory,
		idle:    defaultIdle,
		log:     log.With().Str("component", "worker_manager").Logger(),
		now:     time.Now,
		scopes:  make(map[string]*scopeState),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the orchestrator of scope, building it on first use or when
// the token changed. created reports whether a new one was built.
func (m *Manager) Get(scope, token string) (orch *chat.Orchestrator, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.scopes[scope]; ok && st.token == token {
		st.lastUsed = m.now()
		return st.orch, false
	}
	st := &scopeState{orch: m.factory(scope, token), token: token, lastUsed: m.now()}
	m.scopes[scope] = st
	m.log.Debug().Str("scope", scope).Msg("orchestrator created")
	return st.orch, true
}

// Peek returns the orchestrator of scope without creating one.
func (m *Manager) Peek(scope string) (*chat.Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.scopes[scope]
	if !ok {
		return nil, false
	}
	return st.orch, true
}

// Drop forgets the local orchestrator of scope.
func (m *Manager) Drop(scope string) {
	m.mu.Lock()
	delete(m.scopes, scope)
	m.mu.Unlock()
}

// Purge drops scope here and on every other instance.
func (m *Manager) Purge(scope, reason string) {
	m.Drop(scope)
	m.bus.publishInvalidation(invalidateMessage{Scope: scope, Reason: reason})
}

// Invalidate tells other instances that scope's state changed. The local
// orchestrator is kept.
func (m *Manager) Invalidate(scope, reason string) {
	m.bus.publishInvalidation(invalidateMessage{Scope: scope, Reason: reason})
}

// Len reports the number of live orchestrators.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.scopes)
}

// Run evicts idle orchestrators and applies remote invalidations until ctx
// is done.
func (m *Manager) Run(ctx context.Context) {
	m.bus.startListener(ctx, func(msg invalidateMessage) {
		m.log.Debug().Str("scope", msg.Scope).Str("reason", msg.Reason).Msg("remote invalidation")
		m.Drop(msg.Scope)
	})

	ticker := time.NewTicker(m.sweepInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictIdle()
		}
	}
}

func (m *Manager) sweepInterval() time.Duration {
	interval := m.idle / 4
	if interval < time.Second {
		interval = time.Second
	}
	return interval
}

// evictIdle drops every orchestrator unused for the idle period.
func (m *Manager) evictIdle() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for scope, st := range m.scopes {
		if now.Sub(st.lastUsed) >= m.idle {
			delete(m.scopes, scope)
			evicted++
		}
	}
	if evicted > 0 {
		m.log.Info().Int("evicted", evicted).Int("remaining", len(m.scopes)).Msg("idle orchestrators evicted")
	}
	return evicted
}
