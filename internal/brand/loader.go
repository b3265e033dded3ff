package brand

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Backend reads and writes the knowledge-base document.
type Backend interface {
	KnowledgeBase(ctx context.Context) (string, error)
	SaveKnowledgeBase(ctx context.Context, content string) error
}

// Loader fetches the profile and hands it to a caller-supplied sink. A
// successful fetch is cached; failed fetches are retried on the next Load.
type Loader struct {
	backend Backend
	log     zerolog.Logger

	mu     sync.Mutex
	cached *Profile
}

func NewLoader(backend Backend, log zerolog.Logger) *Loader {
	return &Loader{backend: backend, log: log.With().Str("component", "brand_loader").Logger()}
}

// Load delivers the profile to sink exactly once. sink is not called when
// the fetch fails.
func (l *Loader) Load(ctx context.Context, sink func(Profile)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cached == nil {
		content, err := l.backend.KnowledgeBase(ctx)
		if err != nil {
			l.log.Warn().Err(err).Msg("knowledge base unavailable")
			return fmt.Errorf("load brand profile: %w", err)
		}
		p := Parse(content)
		l.cached = &p
	}
	sink(*l.cached)
	return nil
}

// Save stores the profile as JSON and refreshes the cache.
func (l *Loader) Save(ctx context.Context, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode brand profile: %w", err)
	}
	if err := l.backend.SaveKnowledgeBase(ctx, string(data)); err != nil {
		return fmt.Errorf("save brand profile: %w", err)
	}
	l.mu.Lock()
	l.cached = &p
	l.mu.Unlock()
	return nil
}
