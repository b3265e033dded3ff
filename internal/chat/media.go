package chat

import (
	"context"
	"fmt"
	"io"
	"strings"

	"copydesk/internal/media"
	"copydesk/internal/models"
	"copydesk/internal/selection"
)

// RefreshMedia reloads the unified media collection. Items that disappear
// from the collection are dropped from the selection.
func (o *Orchestrator) RefreshMedia(ctx context.Context) []models.MediaItem {
	items := o.library.Refresh(ctx)
	present := make(map[string]bool, len(items))
	for _, it := range items {
		present[it.ID] = true
	}
	for _, id := range o.ledger.SelectedIDs() {
		if !present[id] {
			o.ledger.Forget(id)
		}
	}
	return items
}

// Media returns the media collection.
func (o *Orchestrator) Media() []models.MediaItem {
	return o.library.Items()
}

// SelectMedia attaches or detaches an item for the next message. Attaching
// a non-inline item starts a session first so the backend has one to key on.
func (o *Orchestrator) SelectMedia(ctx context.Context, id string, selected bool) error {
	item, ok := o.library.Get(id)
	if !ok {
		return ErrUnknownMedia
	}
	if selected && !selection.IsScrapedLike(item) {
		if err := o.ensureSession(ctx); err != nil {
			return err
		}
	}
	return o.ledger.SetSelected(ctx, o.Session().SessionID, item, selected)
}

// UploadMedia forwards a file and adds it to the collection.
func (o *Orchestrator) UploadMedia(ctx context.Context, filename, contentType string, body io.Reader) (models.MediaItem, error) {
	rec, err := o.backend.UploadMedia(ctx, filename, contentType, body)
	if err != nil {
		o.notes.Error(fmt.Sprintf("Upload of %s failed.", filename))
		return models.MediaItem{}, fmt.Errorf("upload %s: %w", filename, err)
	}
	item := o.library.AddUploaded(*rec)
	o.notes.Success(fmt.Sprintf("%s uploaded.", item.Name()))
	return item, nil
}

// DeleteMedia removes an item from the backend, the collection and the
// selection.
func (o *Orchestrator) DeleteMedia(ctx context.Context, id string) error {
	item, ok := o.library.Get(id)
	if !ok {
		return ErrUnknownMedia
	}

	var err error
	switch {
	case strings.HasPrefix(item.ID, models.ScrapedIDPrefix):
		err = o.backend.DeleteScraped(ctx, item.Filename, item.ResourceID)
	case strings.HasPrefix(item.ID, "youtube-"):
		// immediate transcriptions exist only locally
	default:
		err = o.backend.DeleteMedia(ctx, item.Filename)
	}
	if err != nil {
		o.notes.Error(fmt.Sprintf("Could not delete %s.", item.Name()))
		return fmt.Errorf("delete media %s: %w", id, err)
	}

	o.library.Remove(id)
	o.ledger.Forget(id)
	return nil
}

// AddURL scrapes a web page, or transcribes it when it is a YouTube link.
func (o *Orchestrator) AddURL(ctx context.Context, url string) (models.MediaItem, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return models.MediaItem{}, fmt.Errorf("url required")
	}
	if media.IsYouTubeURL(url) {
		res, err := o.backend.Transcribe(ctx, url)
		if err != nil {
			o.notes.Error("Transcription failed.")
			return models.MediaItem{}, fmt.Errorf("transcribe %s: %w", url, err)
		}
		item := o.library.AddTranscript(*res)
		o.notes.Success("Transcript ready.")
		return item, nil
	}

	rec, err := o.backend.Scrape(ctx, url)
	if err != nil {
		o.notes.Error("Could not scrape that page.")
		return models.MediaItem{}, fmt.Errorf("scrape %s: %w", url, err)
	}
	item := o.library.AddScraped(*rec)
	o.notes.Success(fmt.Sprintf("%s added.", item.Name()))
	return item, nil
}
