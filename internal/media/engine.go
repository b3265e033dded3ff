// Package media reconciles uploaded files, scraped records and locally
// created transcripts into one item collection.
package media

import (
	"path"
	"strings"

	"copydesk/internal/models"
)

// locallySignificant types survive a server refresh until the server lists
// an item with the same key.
var locallySignificant = map[models.MediaType]bool{
	models.MediaYouTube:    true,
	models.MediaTranscript: true,
	models.MediaScraped:    true,
	models.MediaWebpage:    true,
	models.MediaURL:        true,
	models.MediaImage:      true,
}

// MergeServerAndLocal returns server followed by the locally significant
// items of current whose (filename, type) key the server does not list.
func MergeServerAndLocal(server, current []models.MediaItem) []models.MediaItem {
	seen := make(map[models.MediaKey]struct{}, len(server))
	out := make([]models.MediaItem, 0, len(server)+len(current))
	for _, item := range server {
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		seen[item.Key()] = struct{}{}
		out = append(out, item)
	}
	for _, item := range current {
		if !locallySignificant[item.Type] {
			continue
		}
		if _, dup := seen[item.Key()]; dup {
			continue
		}
		seen[item.Key()] = struct{}{}
		out = append(out, item)
	}
	return out
}

// ReplaceScrapedItems drops every scraped- item from current and appends fresh.
func ReplaceScrapedItems(current, fresh []models.MediaItem) []models.MediaItem {
	out := make([]models.MediaItem, 0, len(current)+len(fresh))
	for _, item := range current {
		if strings.HasPrefix(item.ID, models.ScrapedIDPrefix) {
			continue
		}
		out = append(out, item)
	}
	return append(out, fresh...)
}

var symbolic = map[string]models.MediaType{
	"pdf":        models.MediaPDF,
	"doc":        models.MediaDoc,
	"docx":       models.MediaDoc,
	"document":   models.MediaDoc,
	"rtf":        models.MediaDoc,
	"odt":        models.MediaDoc,
	"txt":        models.MediaTxt,
	"text":       models.MediaTxt,
	"md":         models.MediaTxt,
	"markdown":   models.MediaTxt,
	"csv":        models.MediaTxt,
	"audio":      models.MediaAudio,
	"mp3":        models.MediaAudio,
	"wav":        models.MediaAudio,
	"m4a":        models.MediaAudio,
	"ogg":        models.MediaAudio,
	"video":      models.MediaVideo,
	"mp4":        models.MediaVideo,
	"mov":        models.MediaVideo,
	"webm":       models.MediaVideo,
	"avi":        models.MediaVideo,
	"image":      models.MediaImage,
	"png":        models.MediaImage,
	"jpg":        models.MediaImage,
	"jpeg":       models.MediaImage,
	"gif":        models.MediaImage,
	"webp":       models.MediaImage,
	"svg":        models.MediaImage,
	"youtube":    models.MediaYouTube,
	"transcript": models.MediaTranscript,
	"scraped":    models.MediaScraped,
	"webpage":    models.MediaWebpage,
	"html":       models.MediaWebpage,
	"url":        models.MediaURL,
	"link":       models.MediaURL,
}

// Classify maps a MIME type, file extension, filename or symbolic tag onto
// the media type enum. Unknown hints map to doc.
func Classify(hint string) models.MediaType {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return models.MediaDoc
	}
	if t, ok := symbolic[h]; ok {
		return t
	}
	if major, minor, ok := strings.Cut(h, "/"); ok {
		minor, _, _ = strings.Cut(minor, ";")
		switch {
		case minor == "pdf":
			return models.MediaPDF
		case major == "audio":
			return models.MediaAudio
		case major == "video":
			return models.MediaVideo
		case major == "image":
			return models.MediaImage
		case minor == "html":
			return models.MediaWebpage
		case major == "text":
			return models.MediaTxt
		case strings.Contains(minor, "word") || strings.Contains(minor, "document") || strings.Contains(minor, "msword"):
			return models.MediaDoc
		}
		return models.MediaDoc
	}
	if ext := strings.TrimPrefix(path.Ext(h), "."); ext != "" {
		if t, ok := symbolic[ext]; ok {
			return t
		}
	}
	return models.MediaDoc
}

// IsYouTubeURL reports whether raw points at a YouTube video.
func IsYouTubeURL(raw string) bool {
	u := strings.ToLower(raw)
	return strings.Contains(u, "youtube.com/") || strings.Contains(u, "youtu.be/")
}
