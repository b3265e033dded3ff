package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copydesk/internal/models"
)

func TestNormalizeHistorySortsAscending(t *testing.T) {
	records := []map[string]any{
		{"id": "3", "sender": "ai", "text": "third", "created_at": "2024-01-01T10:02:00Z"},
		{"id": "1", "role": "user", "message": "first", "timestamp": "2024-01-01T10:00:00Z"},
		{"id": "2", "role": "assistant", "content": "second", "timestamp": float64(1704103260)},
	}
	msgs := NormalizeHistory(records)
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].OriginalTimestamp.Before(msgs[i-1].OriginalTimestamp))
	}
}

func TestNormalizeHistoryRoleMapping(t *testing.T) {
	msgs := NormalizeHistory([]map[string]any{
		{"sender": "user", "message": "a", "timestamp": "2024-01-01T10:00:00Z"},
		{"sender": "bot", "message": "b", "timestamp": "2024-01-01T10:01:00Z"},
		{"message": "c", "timestamp": "2024-01-01T10:02:00Z"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	assert.Equal(t, models.RoleAssistant, msgs[2].Role)
	assert.NotEmpty(t, msgs[2].ID)
}

func TestNormalizeHistoryUndatedSortLast(t *testing.T) {
	msgs := NormalizeHistory([]map[string]any{
		{"id": "x", "message": "undated"},
		{"id": "y", "message": "dated", "timestamp": "2024-01-01T10:00:00Z"},
		{"id": "z", "content": ""},
	})
	require.Len(t, msgs, 2)
	assert.Equal(t, "dated", msgs[0].Content)
	assert.Equal(t, "undated", msgs[1].Content)
}
