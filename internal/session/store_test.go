package session

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copydesk/internal/models"
	"copydesk/internal/storage"
)

func newStore(t *testing.T) (*Store, *storage.MemoryStore) {
	t.Helper()
	kv := storage.NewMemoryStore()
	return NewStore(kv, "scope-1", zerolog.Nop()), kv
}

func TestLoadFromEmptyStorage(t *testing.T) {
	s, _ := newStore(t)
	sess := s.Load(context.Background(), false)
	assert.Equal(t, "", sess.SessionID)
	assert.Empty(t, sess.Messages)
}

func TestPersistAndLoad(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	s.Persist(ctx, models.Session{
		SessionID: "s1",
		Started:   true,
		Messages:  []models.Message{models.NewMessage("m1", models.RoleUser, "Hello", at)},
	})

	sess := s.Load(ctx, false)
	assert.Equal(t, "s1", sess.SessionID)
	assert.True(t, sess.Started)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, "Hello", sess.Messages[0].Content)
	assert.True(t, at.Equal(sess.StartedAt()))
}

func TestLoadIgnoresSessionWithoutMessages(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	s.Persist(ctx, models.Session{SessionID: "s1", Started: true})
	assert.True(t, s.Load(ctx, false).Empty())
}

func TestFreshStartDiscardsPersistedState(t *testing.T) {
	s, kv := newStore(t)
	ctx := context.Background()
	msgs := []models.Message{models.NewMessage("m1", models.RoleUser, "Hi", time.Now())}
	s.Persist(ctx, models.Session{SessionID: "s1", Started: true, Messages: msgs})
	s.MarkFreshStart(ctx)

	assert.True(t, s.Load(ctx, false).Empty())
	_, err := kv.Get(ctx, "scope-1", KeyFreshStart)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	s.Persist(ctx, models.Session{SessionID: "s2", Messages: msgs})
	assert.True(t, s.Load(ctx, true).Empty())
}

func TestClearRemovesAllSessionKeys(t *testing.T) {
	s, kv := newStore(t)
	ctx := context.Background()
	msgs := []models.Message{models.NewMessage("m1", models.RoleUser, "Hi", time.Now())}
	s.Persist(ctx, models.Session{SessionID: "s1", Started: true, Messages: msgs})

	sess := s.Clear(ctx)
	assert.Equal(t, "", sess.SessionID)
	assert.False(t, sess.Started)
	assert.Empty(t, sess.Messages)
	for _, key := range []string{KeySessionID, KeyStarted, KeyMessages} {
		_, err := kv.Get(ctx, "scope-1", key)
		assert.ErrorIs(t, err, storage.ErrNotFound, key)
	}
}

func TestPendingPromptIsOneShot(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	s.SetPendingPrompt(ctx, "Write a tagline")
	assert.Equal(t, "Write a tagline", s.TakePendingPrompt(ctx))
	assert.Equal(t, "", s.TakePendingPrompt(ctx))
}

func TestScopesAreIsolated(t *testing.T) {
	kv := storage.NewMemoryStore()
	ctx := context.Background()
	a := NewStore(kv, "a", zerolog.Nop())
	b := NewStore(kv, "b", zerolog.Nop())
	msgs := []models.Message{models.NewMessage("m1", models.RoleUser, "Hi", time.Now())}
	a.Persist(ctx, models.Session{SessionID: "sa", Messages: msgs})
	assert.True(t, b.Load(ctx, false).Empty())
	assert.Equal(t, "sa", a.Load(ctx, false).SessionID)
}
