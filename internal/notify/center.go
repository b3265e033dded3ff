// Package notify keeps the transient, dismissible notifications shown to one
// client scope.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"copydesk/internal/models"
)

const DefaultTTL = 5 * time.Second

// Center holds notifications until they expire or are dismissed.
type Center struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items []models.Notification
}

func NewCenter(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Center{ttl: ttl, now: time.Now}
}

// SetClock replaces the time source.
func (c *Center) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Notify records a message and returns the stored notification.
func (c *Center) Notify(severity models.Severity, message string) models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	at := c.now()
	n := models.Notification{
		ID:        uuid.NewString(),
		Message:   message,
		Severity:  severity,
		CreatedAt: at,
		ExpiresAt: at.Add(c.ttl),
	}
	c.items = append(c.items, n)
	return n
}

func (c *Center) Error(message string) models.Notification {
	return c.Notify(models.SeverityError, message)
}

func (c *Center) Success(message string) models.Notification {
	return c.Notify(models.SeveritySuccess, message)
}

// Active prunes expired entries and returns the rest, oldest first.
func (c *Center) Active() []models.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	kept := c.items[:0]
	for _, n := range c.items {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	c.items = kept
	return append([]models.Notification(nil), kept...)
}

// Dismiss removes a notification. It reports whether one was removed.
func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, n := range c.items {
		if n.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}
