package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"copydesk/internal/models"
)

func TestExtractReplyPrecedence(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want string
	}{
		{"response", map[string]any{"response": "r", "content": "c"}, "r"},
		{"content", map[string]any{"content": "c", "message": "m"}, "c"},
		{"message", map[string]any{"message": "m", "ai_response": "a"}, "m"},
		{"ai_response", map[string]any{"ai_response": "a", "output": "o"}, "a"},
		{"output", map[string]any{"output": "o"}, "o"},
		{"text", map[string]any{"text": "t"}, "t"},
		{"page content delimiter", map[string]any{"pageContent": "human : hi\nai : Hello there"}, "Hello there"},
		{"page content plain", map[string]any{"pageContent": "just text"}, "just text"},
		{"page content upper marker", map[string]any{"pageContent": "Human : hi\nAI : Hey"}, "Hey"},
		{"page content last marker wins", map[string]any{"pageContent": "ai : one\nhuman : more\nai : two"}, "two"},
		{"page content widening runes", map[string]any{"pageContent": "ȺȺȺȺȺȺȺȺ ai :"}, "ȺȺȺȺȺȺȺȺ ai :"},
		{"page content shrinking runes", map[string]any{"pageContent": "İstanbul? ai : Merhaba"}, "Merhaba"},
		{"page content marker only", map[string]any{"pageContent": "İİİİİİ ai :"}, "İİİİİİ ai :"},
		{"nested data", map[string]any{"data": map[string]any{"response": "deep"}}, "deep"},
		{"nested array", map[string]any{"data": []any{map[string]any{"output": "first"}}}, "first"},
		{"array", []any{map[string]any{"response": "arr"}}, "arr"},
		{"plain string", "plain", "plain"},
		{"empty values skipped", map[string]any{"response": "", "content": "c"}, "c"},
		{"unknown shape", map[string]any{"foo": 1}, FallbackReply},
		{"nil", nil, FallbackReply},
		{"empty array", []any{}, FallbackReply},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractReply(tc.in))
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "Hi", BuildPrompt("Hi", nil))

	got := BuildPrompt("Hi", []models.MediaItem{
		{Title: "One", Content: "first body"},
		{Filename: "clip", Transcript: "spoken"},
	})
	assert.Contains(t, got, "--- One ---\nfirst body")
	assert.Contains(t, got, "--- clip ---\nspoken")
}
