package worker

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copydesk/internal/chat"
	"copydesk/internal/notify"
	"copydesk/internal/session"
	"copydesk/internal/storage"
)

func testFactory(builds *int) Factory {
	kv := storage.NewMemoryStore()
	return func(scope, token string) *chat.Orchestrator {
		*builds++
		return chat.New(nil, session.NewStore(kv, scope, zerolog.Nop()), notify.NewCenter(0), zerolog.Nop())
	}
}

func TestGetReusesPerScope(t *testing.T) {
	builds := 0
	m := NewManager(testFactory(&builds), zerolog.Nop())

	a, created := m.Get("alice", "t1")
	require.True(t, created)
	again, created := m.Get("alice", "t1")
	assert.False(t, created)
	assert.Same(t, a, again)

	b, _ := m.Get("bob", "t2")
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, 2, builds)
}

func TestGetRebuildsOnTokenChange(t *testing.T) {
	builds := 0
	m := NewManager(testFactory(&builds), zerolog.Nop())
	first, _ := m.Get("alice", "old")
	second, created := m.Get("alice", "new")
	assert.True(t, created)
	assert.NotSame(t, first, second)
	assert.Equal(t, 1, m.Len())
}

func TestDropAndPurgeWithoutBus(t *testing.T) {
	builds := 0
	m := NewManager(testFactory(&builds), zerolog.Nop())
	m.Get("alice", "t")
	m.Get("bob", "t")

	m.Drop("alice")
	_, ok := m.Peek("alice")
	assert.False(t, ok)

	m.Purge("bob", "logout")
	assert.Equal(t, 0, m.Len())
}

func TestEvictIdle(t *testing.T) {
	builds := 0
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewManager(testFactory(&builds), zerolog.Nop(), WithIdle(10*time.Minute))
	m.now = func() time.Time { return now }

	m.Get("stale", "t")
	now = now.Add(6 * time.Minute)
	m.Get("fresh", "t")
	now = now.Add(5 * time.Minute)

	assert.Equal(t, 1, m.evictIdle())
	_, ok := m.Peek("fresh")
	assert.True(t, ok)
	_, ok = m.Peek("stale")
	assert.False(t, ok)
}

func TestRunStopsWithContext(t *testing.T) {
	builds := 0
	m := NewManager(testFactory(&builds), zerolog.Nop(), WithIdle(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}
