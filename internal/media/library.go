package media

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"copydesk/internal/models"
	"copydesk/internal/n8n"
)

// Source lists the server-side media of a client.
type Source interface {
	ListMedia(ctx context.Context) ([]n8n.MediaRecord, error)
	ListScraped(ctx context.Context) ([]n8n.ScrapedRecord, error)
}

// Library is the unified media collection of one client scope.
type Library struct {
	src Source
	log zerolog.Logger
	now func() time.Time

	mu    sync.RWMutex
	items []models.MediaItem
}

func NewLibrary(src Source, log zerolog.Logger) *Library {
	return &Library{
		src: src,
		log: log.With().Str("component", "media_library").Logger(),
		now: time.Now,
	}
}

// SetClock replaces the time source used for synthesized ids.
func (l *Library) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// Refresh reloads uploads and scraped records and merges them with the
// locally held items. A failed upload listing leaves the collection empty.
func (l *Library) Refresh(ctx context.Context) []models.MediaItem {
	records, err := l.src.ListMedia(ctx)
	if err != nil {
		l.log.Warn().Err(err).Msg("media list unavailable")
		l.mu.Lock()
		l.items = []models.MediaItem{}
		l.mu.Unlock()
		return []models.MediaItem{}
	}
	server := make([]models.MediaItem, 0, len(records))
	for _, rec := range records {
		if item, ok := FromMediaRecord(rec); ok {
			server = append(server, item)
		}
	}

	scraped, scrapedErr := l.src.ListScraped(ctx)
	if scrapedErr != nil {
		l.log.Warn().Err(scrapedErr).Msg("scraped contents unavailable")
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	merged := MergeServerAndLocal(server, l.items)
	if scrapedErr == nil {
		fresh := make([]models.MediaItem, 0, len(scraped))
		for _, rec := range scraped {
			fresh = append(fresh, FromScrapedRecord(rec))
		}
		merged = ReplaceScrapedItems(merged, fresh)
	}
	l.items = merged
	return append([]models.MediaItem(nil), merged...)
}

// Items returns a snapshot of the collection.
func (l *Library) Items() []models.MediaItem {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.MediaItem(nil), l.items...)
}

func (l *Library) Get(id string) (models.MediaItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, item := range l.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.MediaItem{}, false
}

// AddUploaded records a fresh upload under a synthesized media_ id unless the
// server already assigned one.
func (l *Library) AddUploaded(rec n8n.MediaRecord) models.MediaItem {
	item, _ := FromMediaRecord(rec)
	if item.ID == "" {
		item.ID = fmt.Sprintf("media_%d_%s", l.now().UnixMilli(), uuid.NewString()[:8])
	}
	if item.UploadedAt.IsZero() {
		item.UploadedAt = l.now()
	}
	l.upsert(item)
	return item
}

// AddTranscript records an immediate YouTube transcription.
func (l *Library) AddTranscript(res n8n.TranscriptResult) models.MediaItem {
	at := l.now()
	title := res.Title
	if title == "" {
		title = res.URL
	}
	item := models.MediaItem{
		ID:         fmt.Sprintf("youtube-%d", at.UnixMilli()),
		Type:       models.MediaYouTube,
		Filename:   title,
		Title:      title,
		Transcript: res.Transcript,
		Content:    res.Transcript,
		URL:        res.URL,
		Size:       int64(len(res.Transcript)),
		UploadedAt: at,
	}
	l.upsert(item)
	return item
}

// AddScraped records a freshly scraped page.
func (l *Library) AddScraped(rec n8n.ScrapedRecord) models.MediaItem {
	item := FromScrapedRecord(rec)
	if item.UploadedAt.IsZero() {
		item.UploadedAt = l.now()
	}
	l.upsert(item)
	return item
}

// Remove drops an item and returns it.
func (l *Library) Remove(id string) (models.MediaItem, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, item := range l.items {
		if item.ID == id {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return item, true
		}
	}
	return models.MediaItem{}, false
}

func (l *Library) upsert(item models.MediaItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, existing := range l.items {
		if existing.ID == item.ID || existing.Key() == item.Key() {
			l.items[i] = item
			return
		}
	}
	l.items = append(l.items, item)
}

// FromMediaRecord converts an upload listing entry. Records without a file
// name are rejected.
func FromMediaRecord(rec n8n.MediaRecord) (models.MediaItem, bool) {
	name := strings.TrimSpace(rec.FileName)
	if name == "" {
		return models.MediaItem{}, false
	}
	hint := rec.FileType
	if hint == "" {
		hint = rec.MimeType
	}
	if hint == "" {
		hint = name
	}
	item := models.MediaItem{
		ID:         string(rec.ID),
		Type:       Classify(hint),
		Filename:   name,
		Content:    rec.Content,
		Transcript: rec.Transcript,
		URL:        rec.URL,
		Size:       int64(rec.Size),
	}
	item.UploadedAt, _ = models.ParseTime(rec.CreatedAt)
	return item, true
}

// FromScrapedRecord converts a scraped listing entry under a scraped- id.
func FromScrapedRecord(rec n8n.ScrapedRecord) models.MediaItem {
	resourceID := string(rec.ResourceID)
	suffix := resourceID
	if suffix == "" {
		suffix = uuid.NewString()[:8]
	}
	typ := models.MediaScraped
	switch {
	case strings.EqualFold(rec.Type, "youtube") || IsYouTubeURL(rec.URL):
		typ = models.MediaYouTube
	case strings.EqualFold(rec.Type, "webpage"):
		typ = models.MediaWebpage
	}
	name := rec.FileName
	if name == "" {
		name = rec.Title
	}
	if name == "" {
		name = rec.URL
	}
	item := models.MediaItem{
		ID:         models.ScrapedIDPrefix + suffix,
		Type:       typ,
		Filename:   name,
		Title:      rec.Title,
		Content:    rec.Content,
		URL:        rec.URL,
		ResourceID: resourceID,
		Size:       int64(len(rec.Content)),
	}
	item.UploadedAt, _ = models.ParseTime(rec.CreatedAt)
	return item
}
