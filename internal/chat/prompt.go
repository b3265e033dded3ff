package chat

import (
	"strings"

	"copydesk/internal/models"
)

// ScrapedContent is the inline context sent alongside an augmented prompt.
type ScrapedContent struct {
	Title      string `json:"title"`
	URL        string `json:"url,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Content    string `json:"content"`
}

// BuildPrompt appends one "--- title ---" block per scraped item to text.
func BuildPrompt(text string, scraped []models.MediaItem) string {
	if len(scraped) == 0 {
		return text
	}
	var b strings.Builder
	b.WriteString(text)
	b.WriteString("\n\nReference content:")
	for _, item := range scraped {
		b.WriteString("\n\n--- ")
		b.WriteString(item.Name())
		b.WriteString(" ---\n")
		b.WriteString(itemText(item))
	}
	return b.String()
}

func scrapedPayload(scraped []models.MediaItem) []ScrapedContent {
	if len(scraped) == 0 {
		return nil
	}
	out := make([]ScrapedContent, 0, len(scraped))
	for _, item := range scraped {
		out = append(out, ScrapedContent{
			Title:      item.Name(),
			URL:        item.URL,
			ResourceID: item.ResourceID,
			Content:    itemText(item),
		})
	}
	return out
}

func itemText(item models.MediaItem) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Transcript
}

// mediaContext summarizes the media collection for session creation.
type mediaContext struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Type     models.MediaType `json:"type"`
	URL      string           `json:"url,omitempty"`
	Selected bool             `json:"selected"`
}

func buildMediaContext(items []models.MediaItem, selected map[string]bool) []mediaContext {
	if len(items) == 0 {
		return nil
	}
	out := make([]mediaContext, 0, len(items))
	for _, item := range items {
		out = append(out, mediaContext{
			ID:       item.ID,
			Name:     item.Name(),
			Type:     item.Type,
			URL:      item.URL,
			Selected: selected[item.ID],
		})
	}
	return out
}
