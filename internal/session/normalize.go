package session

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"copydesk/internal/models"
)

// NormalizeHistory maps message records of any known shape onto Message and
// orders them oldest first. Records without a parsable timestamp sort after
// dated ones, keeping their relative order.
func NormalizeHistory(records []map[string]any) []models.Message {
	out := make([]models.Message, 0, len(records))
	for _, rec := range records {
		content := pickString(rec, "message", "text", "content")
		if content == "" {
			continue
		}
		at, _ := pickTime(rec, "timestamp", "created_at", "createdAt")
		msg := models.NewMessage(pickID(rec), roleOf(rec), content, at)
		if at.IsZero() {
			msg.Timestamp = ""
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].OriginalTimestamp, out[j].OriginalTimestamp
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.Before(b)
	})
	return out
}

func roleOf(rec map[string]any) models.Role {
	raw := pickString(rec, "sender", "role", "type")
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user", "human":
		return models.RoleUser
	default:
		return models.RoleAssistant
	}
}

func pickID(rec map[string]any) string {
	for _, k := range []string{"id", "message_id"} {
		switch v := rec[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return uuid.NewString()
}

func pickString(rec map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := rec[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func pickTime(rec map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if t, ok := models.ParseTime(v); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
