// Package agent keeps the selectable assistant profiles of one client scope.
package agent

import (
	"context"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"copydesk/internal/models"
	"copydesk/internal/n8n"
)

// Source fetches raw agent records.
type Source interface {
	ListAgents(ctx context.Context) ([]n8n.AgentRecord, error)
}

const (
	FallbackID   = "default"
	FallbackName = "Default Agent"
)

var iconPalette = []string{"sparkles", "pen-tool", "megaphone", "target", "lightbulb", "message-circle"}

// Registry caches the agent list and the current selection.
type Registry struct {
	src Source
	log zerolog.Logger

	mu       sync.RWMutex
	agents   []models.Agent
	selected string
	loaded   bool
}

func NewRegistry(src Source, log zerolog.Logger) *Registry {
	return &Registry{src: src, log: log.With().Str("component", "agent_registry").Logger()}
}

// Refresh reloads the agent list. Failures and empty lists degrade to the
// fallback agent. The selection survives when its agent is still listed,
// otherwise the first agent becomes selected.
func (r *Registry) Refresh(ctx context.Context) []models.Agent {
	var agents []models.Agent
	records, err := r.src.ListAgents(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("agent list unavailable, using fallback")
	} else {
		agents = Transform(records)
	}
	if len(agents) == 0 {
		agents = []models.Agent{Fallback()}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = agents
	r.loaded = true
	if r.indexOf(r.selected) < 0 {
		r.selected = agents[0].Name
	}
	return append([]models.Agent(nil), agents...)
}

// Transform maps raw records onto Agent, skipping records without an id.
func Transform(records []n8n.AgentRecord) []models.Agent {
	out := make([]models.Agent, 0, len(records))
	for _, rec := range records {
		id := strings.TrimSpace(rec.AgentID)
		if id == "" {
			continue
		}
		name := strings.TrimSpace(rec.Name)
		if name == "" {
			name = DisplayName(id)
		}
		out = append(out, models.Agent{
			ID:          id,
			Name:        name,
			Description: rec.ShortDescription,
			Icon:        iconPalette[len(out)%len(iconPalette)],
		})
	}
	return out
}

// DisplayName turns a slug such as "copy-writer_bot" into "Copy Writer Bot".
func DisplayName(slug string) string {
	words := strings.FieldsFunc(slug, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '.'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

func Fallback() models.Agent {
	return models.Agent{
		ID:          FallbackID,
		Name:        FallbackName,
		Description: "General purpose assistant",
		Icon:        iconPalette[0],
	}
}

// Select changes the active agent. It reports false when name is already
// selected or is not a listed agent.
func (r *Registry) Select(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if name == r.selected || r.indexOf(name) < 0 {
		return false
	}
	r.selected = name
	return true
}

// Selected returns the active agent.
func (r *Registry) Selected() (models.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.indexOf(r.selected); i >= 0 {
		return r.agents[i], true
	}
	return models.Agent{}, false
}

func (r *Registry) Agents() []models.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Agent(nil), r.agents...)
}

// Loaded reports whether Refresh has completed at least once.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

func (r *Registry) indexOf(name string) int {
	if name == "" {
		return -1
	}
	for i, a := range r.agents {
		if a.Name == name {
			return i
		}
	}
	return -1
}
