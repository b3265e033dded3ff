package models

import "time"

type MediaType string

const (
	MediaPDF        MediaType = "pdf"
	MediaDoc        MediaType = "doc"
	MediaTxt        MediaType = "txt"
	MediaAudio      MediaType = "audio"
	MediaVideo      MediaType = "video"
	MediaImage      MediaType = "image"
	MediaYouTube    MediaType = "youtube"
	MediaTranscript MediaType = "transcript"
	MediaScraped    MediaType = "scraped"
	MediaWebpage    MediaType = "webpage"
	MediaURL        MediaType = "url"
)

// ScrapedIDPrefix marks items synthesized from scraped-content records.
const ScrapedIDPrefix = "scraped-"

// MediaItem is a unit of content available as chat context.
type MediaItem struct {
	ID         string    `json:"id"`
	Type       MediaType `json:"type"`
	Filename   string    `json:"filename,omitempty"`
	Title      string    `json:"title,omitempty"`
	Content    string    `json:"content,omitempty"`
	Transcript string    `json:"transcript,omitempty"`
	URL        string    `json:"url,omitempty"`
	ResourceID string    `json:"resource_id,omitempty"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Name is the filename, or the title when no filename is known.
func (m MediaItem) Name() string {
	if m.Filename != "" {
		return m.Filename
	}
	return m.Title
}

// Key is the duplicate-detection key (filename, type).
func (m MediaItem) Key() MediaKey {
	return MediaKey{Filename: m.Name(), Type: m.Type}
}

type MediaKey struct {
	Filename string
	Type     MediaType
}
