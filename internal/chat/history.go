package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"

	"copydesk/internal/models"
	"copydesk/internal/n8n"
)

// historyRetries is the number of attempts after the first one.
const historyRetries = 2

// RefreshHistory reloads past sessions, retrying timeouts and network
// failures with a fixed delay. When every attempt fails the list is emptied
// and a notification is issued.
func (o *Orchestrator) RefreshHistory(ctx context.Context) []models.ChatHistoryEntry {
	attempt := 0
	op := func() ([]n8n.HistoryRecord, error) {
		attempt++
		records, err := o.backend.ChatHistory(ctx)
		if err == nil {
			return records, nil
		}
		if !n8n.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		o.log.Debug().Err(err).Int("attempt", attempt).Msg("chat history attempt failed")
		return nil, err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(o.retryDelay), historyRetries), ctx)

	records, err := backoff.RetryWithData(op, policy)
	if err != nil {
		o.log.Warn().Err(err).Int("attempts", attempt).Msg("chat history unavailable")
		o.mu.Lock()
		o.history = []models.ChatHistoryEntry{}
		o.mu.Unlock()
		if !errors.Is(err, n8n.ErrNoToken) {
			o.notes.Error("Could not load chat history. Please try again.")
		}
		return []models.ChatHistoryEntry{}
	}

	entries := HistoryEntries(records)
	o.mu.Lock()
	o.history = entries
	o.mu.Unlock()
	return append([]models.ChatHistoryEntry(nil), entries...)
}

// HistoryEntries converts records, drops those without a session id and
// sorts newest first.
func HistoryEntries(records []n8n.HistoryRecord) []models.ChatHistoryEntry {
	out := make([]models.ChatHistoryEntry, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(string(rec.SessionID))
		if id == "" {
			continue
		}
		created, _ := models.ParseTime(rec.CreatedAt)
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			title = "Untitled conversation"
		}
		out = append(out, models.ChatHistoryEntry{SessionID: id, Title: title, CreatedAt: created})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// History returns the cached history list.
func (o *Orchestrator) History() []models.ChatHistoryEntry {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]models.ChatHistoryEntry{}, o.history...)
}

// DeleteHistory removes a past session and reconciles the list with the
// backend. Deleting the active session also clears it.
func (o *Orchestrator) DeleteHistory(ctx context.Context, sessionID string) error {
	if err := o.backend.DeleteChat(ctx, sessionID); err != nil {
		o.notes.Error("Could not delete the conversation.")
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}

	o.awaitInit()
	o.mu.Lock()
	kept := o.history[:0]
	for _, h := range o.history {
		if h.SessionID != sessionID {
			kept = append(kept, h)
		}
	}
	o.history = kept
	if o.session.SessionID == sessionID {
		o.clearLocked(ctx)
	}
	o.mu.Unlock()

	o.RefreshHistory(ctx)
	return nil
}
