// Package session persists the active conversation of one client scope in
// the scoped key/value store.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"

	"copydesk/internal/models"
	"copydesk/internal/storage"
)

const (
	KeySessionID     = "chat_session_id"
	KeyStarted       = "chat_started"
	KeyMessages      = "chat_messages"
	KeyFreshStart    = "fresh_start"
	KeyPendingPrompt = "pending_prompt"
)

var sessionKeys = []string{KeySessionID, KeyStarted, KeyMessages}

// Store reads and writes one scope's session keys. Write failures are logged
// and swallowed.
type Store struct {
	kv    storage.KV
	scope string
	log   zerolog.Logger
}

func NewStore(kv storage.KV, scope string, log zerolog.Logger) *Store {
	return &Store{
		kv:    kv,
		scope: scope,
		log:   log.With().Str("component", "session_store").Str("scope", scope).Logger(),
	}
}

// Load rehydrates the persisted session. A fresh-start signal, either the
// fresh argument or the stored one-shot flag, discards persisted state.
func (s *Store) Load(ctx context.Context, fresh bool) models.Session {
	if flag, _ := s.get(ctx, KeyFreshStart); flag == "true" {
		fresh = true
	}
	if fresh {
		s.remove(ctx, append([]string{KeyFreshStart}, sessionKeys...)...)
		return models.Session{}
	}

	raw, _ := s.get(ctx, KeyMessages)
	if raw == "" {
		return models.Session{}
	}
	var messages []models.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		s.log.Warn().Err(err).Msg("discarding unreadable message log")
		return models.Session{}
	}
	if len(messages) == 0 {
		return models.Session{}
	}

	id, _ := s.get(ctx, KeySessionID)
	started, _ := s.get(ctx, KeyStarted)
	ok, _ := strconv.ParseBool(started)
	return models.Session{SessionID: id, Started: ok, Messages: messages}
}

// Persist writes the session id, started flag and message log.
func (s *Store) Persist(ctx context.Context, sess models.Session) {
	messages := sess.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		s.log.Error().Err(err).Msg("encode message log")
		return
	}
	s.set(ctx, KeySessionID, sess.SessionID)
	s.set(ctx, KeyStarted, strconv.FormatBool(sess.Started))
	s.set(ctx, KeyMessages, string(data))
}

// Clear removes the persisted session keys and returns the empty session.
func (s *Store) Clear(ctx context.Context) models.Session {
	s.remove(ctx, sessionKeys...)
	return models.Session{}
}

// MarkFreshStart makes the next Load discard persisted state.
func (s *Store) MarkFreshStart(ctx context.Context) {
	s.set(ctx, KeyFreshStart, "true")
}

// SetPendingPrompt stores a prompt to prefill on the next load.
func (s *Store) SetPendingPrompt(ctx context.Context, prompt string) {
	s.set(ctx, KeyPendingPrompt, prompt)
}

// TakePendingPrompt returns and removes the pending prompt.
func (s *Store) TakePendingPrompt(ctx context.Context) string {
	prompt, _ := s.get(ctx, KeyPendingPrompt)
	if prompt != "" {
		s.remove(ctx, KeyPendingPrompt)
	}
	return prompt
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.kv.Get(ctx, s.scope, key)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.log.Warn().Err(err).Str("key", key).Msg("read scoped value")
	}
	return v, err
}

func (s *Store) set(ctx context.Context, key, value string) {
	if err := s.kv.Set(ctx, s.scope, key, value); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("write scoped value")
	}
}

func (s *Store) remove(ctx context.Context, keys ...string) {
	if err := s.kv.Delete(ctx, s.scope, keys...); err != nil {
		s.log.Warn().Err(err).Strs("keys", keys).Msg("delete scoped values")
	}
}
