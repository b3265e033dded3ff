package media

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copydesk/internal/models"
	"copydesk/internal/n8n"
)

type stubSource struct {
	media      []n8n.MediaRecord
	mediaErr   error
	scraped    []n8n.ScrapedRecord
	scrapedErr error
}

func (s *stubSource) ListMedia(context.Context) ([]n8n.MediaRecord, error) {
	return s.media, s.mediaErr
}

func (s *stubSource) ListScraped(context.Context) ([]n8n.ScrapedRecord, error) {
	return s.scraped, s.scrapedErr
}

func TestLibraryRefreshMergesSources(t *testing.T) {
	src := &stubSource{
		media: []n8n.MediaRecord{
			{ID: "10", FileName: "brief.pdf", MimeType: "application/pdf", Size: 2048},
			{ID: "11"},
		},
		scraped: []n8n.ScrapedRecord{{ResourceID: "r1", Title: "Pricing page", URL: "https://acme.test/pricing", Content: "Article text"}},
	}
	lib := NewLibrary(src, zerolog.Nop())
	lib.now = func() time.Time { return time.UnixMilli(1700000000000) }
	lib.AddTranscript(n8n.TranscriptResult{Title: "Launch", URL: "https://youtu.be/x", Transcript: "words"})

	items := lib.Refresh(context.Background())
	require.Len(t, items, 3)
	assert.Equal(t, "10", items[0].ID)
	assert.Equal(t, models.MediaPDF, items[0].Type)
	assert.Equal(t, "youtube-1700000000000", items[1].ID)
	assert.Equal(t, "scraped-r1", items[2].ID)
	assert.Equal(t, "r1", items[2].ResourceID)

	got, ok := lib.Get("scraped-r1")
	require.True(t, ok)
	assert.Equal(t, "Article text", got.Content)
}

func TestLibraryRefreshFailureEmptiesCollection(t *testing.T) {
	src := &stubSource{media: []n8n.MediaRecord{{ID: "1", FileName: "a.txt"}}}
	lib := NewLibrary(src, zerolog.Nop())
	require.Len(t, lib.Refresh(context.Background()), 1)

	src.mediaErr = errors.New("down")
	items := lib.Refresh(context.Background())
	assert.NotNil(t, items)
	assert.Empty(t, items)
	assert.Empty(t, lib.Items())
}

func TestLibraryScrapedFailureKeepsExistingScraped(t *testing.T) {
	src := &stubSource{scraped: []n8n.ScrapedRecord{{ResourceID: "r1", Title: "Page"}}}
	lib := NewLibrary(src, zerolog.Nop())
	lib.Refresh(context.Background())

	src.scrapedErr = errors.New("down")
	items := lib.Refresh(context.Background())
	require.Len(t, items, 1)
	assert.Equal(t, "scraped-r1", items[0].ID)
}

func TestAddUploadedSynthesizesID(t *testing.T) {
	lib := NewLibrary(&stubSource{}, zerolog.Nop())
	item := lib.AddUploaded(n8n.MediaRecord{FileName: "deck.pdf", MimeType: "application/pdf"})
	assert.True(t, strings.HasPrefix(item.ID, "media_"))
	assert.Equal(t, models.MediaPDF, item.Type)

	removed, ok := lib.Remove(item.ID)
	require.True(t, ok)
	assert.Equal(t, "deck.pdf", removed.Filename)
	_, ok = lib.Get(item.ID)
	assert.False(t, ok)
}

func TestFromScrapedRecordWithoutResourceID(t *testing.T) {
	item := FromScrapedRecord(n8n.ScrapedRecord{Title: "Blog"})
	assert.True(t, strings.HasPrefix(item.ID, models.ScrapedIDPrefix))
	assert.Len(t, item.ID, len(models.ScrapedIDPrefix)+8)
	assert.Equal(t, models.MediaScraped, item.Type)
}
