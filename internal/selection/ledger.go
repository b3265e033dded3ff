// Package selection tracks which media items are attached to the next
// outgoing message.
package selection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"copydesk/internal/models"
)

// ErrPending is returned when an item still has an attach or detach call
// in flight.
var ErrPending = errors.New("selection change already in progress")

// State is the transaction status of a ledger entry.
type State int

const (
	StatePending State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Attacher attaches media to, or detaches it from, a session's retrieval
// context.
type Attacher interface {
	RagUpload(ctx context.Context, sessionID, mediaID string) error
	RagDelete(ctx context.Context, sessionID, mediaID string) error
}

// Notifier surfaces failures to the user.
type Notifier interface {
	Notify(severity models.Severity, message string) models.Notification
}

// Entry is one item's selection record. Selected is the visible state; while
// State is pending it holds the optimistic value.
type Entry struct {
	Item     models.MediaItem
	Selected bool
	State    State
}

type Ledger struct {
	attacher Attacher
	notifier Notifier
	log      zerolog.Logger

	mu      sync.Mutex
	entries map[string]*Entry
	order   []string
}

func NewLedger(attacher Attacher, notifier Notifier, log zerolog.Logger) *Ledger {
	return &Ledger{
		attacher: attacher,
		notifier: notifier,
		log:      log.With().Str("component", "selection_ledger").Logger(),
		entries:  make(map[string]*Entry),
	}
}

// IsScrapedLike reports whether item content is inlined into the prompt
// instead of being attached through the retrieval endpoints.
func IsScrapedLike(item models.MediaItem) bool {
	return (item.Content != "" && item.ResourceID != "") ||
		item.Type == models.MediaScraped ||
		strings.HasPrefix(item.ID, models.ScrapedIDPrefix)
}

// SetSelected moves item to the requested state. The change is visible
// immediately; when the backend rejects it the entry reverts to its prior
// state, is marked rolled back, and a notification is issued. Requests for
// the current state are no-ops.
func (l *Ledger) SetSelected(ctx context.Context, sessionID string, item models.MediaItem, selected bool) error {
	l.mu.Lock()
	prev, existed := l.entries[item.ID]
	var prevCopy Entry
	if existed {
		prevCopy = *prev
		if prev.State == StatePending {
			l.mu.Unlock()
			return ErrPending
		}
	}
	if (existed && prev.Selected == selected) || (!existed && !selected) {
		l.mu.Unlock()
		return nil
	}

	scraped := IsScrapedLike(item)
	entry := &Entry{Item: item, Selected: selected, State: StatePending}
	if scraped {
		entry.State = StateCommitted
	}
	l.put(entry)
	if scraped {
		if !selected {
			l.drop(item.ID)
		}
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	var err error
	if selected {
		err = l.attacher.RagUpload(ctx, sessionID, item.ID)
	} else {
		err = l.attacher.RagDelete(ctx, sessionID, item.ID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.entries[item.ID] != entry {
		// forgotten or reset while the call was in flight
		return err
	}
	if err != nil {
		rolled := &Entry{Item: item, Selected: !selected, State: StateRolledBack}
		if existed {
			rolled.Selected = prevCopy.Selected
		}
		l.put(rolled)
		l.log.Warn().Err(err).Str("media_id", item.ID).Bool("selected", selected).Msg("selection change rolled back")
		verb := "attach"
		if !selected {
			verb = "detach"
		}
		if l.notifier != nil {
			l.notifier.Notify(models.SeverityError, fmt.Sprintf("Failed to %s %s", verb, item.Name()))
		}
		return fmt.Errorf("%s media %s: %w", verb, item.ID, err)
	}
	if selected {
		entry.State = StateCommitted
		l.put(entry)
	} else {
		l.drop(item.ID)
	}
	return nil
}

// IsSelected reports the visible selection state of id.
func (l *Ledger) IsSelected(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	return ok && e.Selected
}

// Status returns the transaction state of id.
func (l *Ledger) Status(id string) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return 0, false
	}
	return e.State, true
}

// Selected returns the selected items in selection order.
func (l *Ledger) Selected() []models.MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collect(func(*Entry) bool { return true })
}

// SelectedIDs returns the ids of the selected items.
func (l *Ledger) SelectedIDs() []string {
	items := l.Selected()
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	return ids
}

// ScrapedForPrompt returns the selected scraped-like items.
func (l *Ledger) ScrapedForPrompt() []models.MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.collect(func(e *Entry) bool { return IsScrapedLike(e.Item) })
}

// ConsumeScraped deselects every scraped-like item and returns them.
func (l *Ledger) ConsumeScraped() []models.MediaItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	consumed := l.collect(func(e *Entry) bool { return IsScrapedLike(e.Item) })
	for _, it := range consumed {
		l.drop(it.ID)
	}
	return consumed
}

// Forget removes id without contacting the backend.
func (l *Ledger) Forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.drop(id)
}

// Reset clears every entry.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]*Entry)
	l.order = nil
}

func (l *Ledger) collect(keep func(*Entry) bool) []models.MediaItem {
	out := []models.MediaItem{}
	for _, id := range l.order {
		e := l.entries[id]
		if e.Selected && keep(e) {
			out = append(out, e.Item)
		}
	}
	return out
}

func (l *Ledger) put(e *Entry) {
	if _, ok := l.entries[e.Item.ID]; !ok {
		l.order = append(l.order, e.Item.ID)
	}
	l.entries[e.Item.ID] = e
}

func (l *Ledger) drop(id string) {
	if _, ok := l.entries[id]; !ok {
		return
	}
	delete(l.entries, id)
	for i, v := range l.order {
		if v == id {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}
