package n8n

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// FlexString decodes JSON strings and numbers alike; n8n emits ids as both.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = FlexString(n.String())
	return nil
}

// FlexInt decodes JSON numbers and numeric strings.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	var s FlexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(n)
	return nil
}

// AgentRecord is one entry of the agent list webhook.
type AgentRecord struct {
	AgentID          string `json:"agent_id"`
	Name             string `json:"name"`
	ShortDescription string `json:"short_description"`
}

type NewChatRequest struct {
	AgentID       string `json:"agent_id"`
	KnowledgeBase any    `json:"knowledge_base,omitempty"`
}

type ChatRequest struct {
	SessionID      string `json:"session_id"`
	UserPrompt     string `json:"user_prompt"`
	AgentID        string `json:"agent_id"`
	ScrapedContent any    `json:"scraped_content,omitempty"`
	KnowledgeBase  any    `json:"knowledge_base,omitempty"`
}

// HistoryRecord is one past session summary as emitted by the webhook.
type HistoryRecord struct {
	SessionID FlexString `json:"session_id"`
	Title     string     `json:"title"`
	CreatedAt any        `json:"created_at"`
}

// MediaRecord describes an uploaded file.
type MediaRecord struct {
	ID         FlexString `json:"id"`
	FileName   string     `json:"file_name"`
	FileType   string     `json:"file_type"`
	MimeType   string     `json:"mime_type"`
	Size       FlexInt    `json:"size"`
	URL        string     `json:"url"`
	Content    string     `json:"content"`
	Transcript string     `json:"transcript"`
	CreatedAt  any        `json:"created_at"`
}

// ScrapedRecord describes a scraped webpage or video.
type ScrapedRecord struct {
	ResourceID FlexString `json:"resource_id"`
	FileName   string     `json:"file_name"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Content    string     `json:"content"`
	Type       string     `json:"type"`
	CreatedAt  any        `json:"created_at"`
}

// TranscriptResult is returned by the transcription webhook.
type TranscriptResult struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Transcript string `json:"transcript"`
}

type ragRequest struct {
	AccessToken string `json:"access_token"`
	SessionID   string `json:"session_id"`
	MediaID     string `json:"media_id"`
}

// decodeList accepts a bare JSON array, or an object wrapping the array
// under one of keys. A single object is returned as a one-element list.
func decodeList[T any](body []byte, keys ...string) ([]T, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	if body[0] == '[' {
		var out []T
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}
	for _, k := range keys {
		if raw, ok := obj[k]; ok {
			return decodeList[T](raw, keys...)
		}
	}
	var one T
	if err := json.Unmarshal(body, &one); err != nil {
		return nil, err
	}
	return []T{one}, nil
}

// firstString finds the first non-empty string value under keys in a JSON
// object, or in the first element of a JSON array.
func firstString(body []byte, keys ...string) string {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return ""
	}
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return ""
		}
		v = arr[0]
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	for _, k := range keys {
		switch s := obj[k].(type) {
		case string:
			if s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(s, 'f', -1, 64)
		}
	}
	if data, ok := obj["data"]; ok {
		nested, err := json.Marshal(data)
		if err == nil {
			return firstString(nested, keys...)
		}
	}
	return ""
}
