package chat

import (
	"regexp"
	"strings"
)

// FallbackReply is used when no extractor finds text in a chat response.
const FallbackReply = "I received your message, but the response could not be displayed."

// extractor pulls reply text out of one response shape. Extractors are total
// and side-effect free.
type extractor func(v any) (string, bool)

var replyExtractors []extractor

var aiMarker = regexp.MustCompile(`(?i)ai :`)

func init() {
	top := []extractor{
		stringBody,
		field("response"),
		field("content"),
		field("message"),
		field("ai_response"),
		field("output"),
		field("text"),
		pageContent,
	}
	replyExtractors = append(top, nested("data", top))
}

// ExtractReply normalizes a chat-window response into assistant text. JSON
// arrays contribute their first element.
func ExtractReply(v any) string {
	v = firstElement(v)
	for _, ex := range replyExtractors {
		if s, ok := ex(v); ok {
			return s
		}
	}
	return FallbackReply
}

func firstElement(v any) any {
	if arr, ok := v.([]any); ok {
		if len(arr) == 0 {
			return nil
		}
		return arr[0]
	}
	return v
}

func stringBody(v any) (string, bool) {
	s, ok := v.(string)
	s = strings.TrimSpace(s)
	return s, ok && s != ""
}

func field(key string) extractor {
	return func(v any) (string, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		return stringBody(obj[key])
	}
}

// pageContent reads document-style responses where the reply follows the
// last "ai :" marker of a transcript.
func pageContent(v any) (string, bool) {
	s, ok := field("pageContent")(v)
	if !ok {
		return "", false
	}
	if marks := aiMarker.FindAllStringIndex(s, -1); len(marks) > 0 {
		if reply := strings.TrimSpace(s[marks[len(marks)-1][1]:]); reply != "" {
			return reply, true
		}
	}
	return s, true
}

func nested(key string, chain []extractor) extractor {
	return func(v any) (string, bool) {
		obj, ok := v.(map[string]any)
		if !ok {
			return "", false
		}
		inner := firstElement(obj[key])
		for _, ex := range chain {
			if s, ok := ex(inner); ok {
				return s, true
			}
		}
		return "", false
	}
}
