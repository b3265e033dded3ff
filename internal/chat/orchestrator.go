// Package chat sequences session creation, message exchange and history for
// one client scope, coordinating the agent registry, media library and
// selection ledger.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"copydesk/internal/agent"
	"copydesk/internal/media"
	"copydesk/internal/models"
	"copydesk/internal/n8n"
	"copydesk/internal/notify"
	"copydesk/internal/selection"
	"copydesk/internal/session"
)

var (
	ErrSendInFlight = errors.New("a message is already being sent")
	ErrEmptyMessage = errors.New("message is empty")
	ErrNoSession    = errors.New("no active session")
	ErrUnknownMedia = errors.New("unknown media item")
)

// ErrorReply is appended as the assistant turn when a send fails.
const ErrorReply = "Sorry, something went wrong while contacting the assistant. Please try again."

// Backend is the set of webhook calls the orchestrator depends on.
type Backend interface {
	agent.Source
	media.Source
	selection.Attacher

	NewChat(ctx context.Context, req n8n.NewChatRequest) (string, error)
	SendChat(ctx context.Context, req n8n.ChatRequest) (any, error)
	ChatHistory(ctx context.Context) ([]n8n.HistoryRecord, error)
	ChatMessages(ctx context.Context, sessionID string) ([]map[string]any, error)
	DeleteChat(ctx context.Context, sessionID string) error
	KnowledgeBase(ctx context.Context) (string, error)

	UploadMedia(ctx context.Context, filename, contentType string, body io.Reader) (*n8n.MediaRecord, error)
	DeleteMedia(ctx context.Context, fileName string) error
	DeleteScraped(ctx context.Context, fileName, resourceID string) error
	Scrape(ctx context.Context, url string) (*n8n.ScrapedRecord, error)
	Transcribe(ctx context.Context, url string) (*n8n.TranscriptResult, error)
}

type Option func(*Orchestrator)

// WithRetryDelay sets the fixed delay between history fetch attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.retryDelay = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// InitOptions carries the one-shot signals of the first state load.
type InitOptions struct {
	Fresh  bool
	ChatID string
}

// State is a point-in-time view of the orchestrator.
type State struct {
	Session       models.Session            `json:"session"`
	Agents        []models.Agent            `json:"agents"`
	SelectedAgent string                    `json:"selected_agent"`
	Media         []models.MediaItem        `json:"media"`
	SelectedMedia []string                  `json:"selected_media"`
	History       []models.ChatHistoryEntry `json:"history"`
	Notifications []models.Notification     `json:"notifications"`
	Sending       bool                      `json:"sending"`
}

// Orchestrator owns the session of one client scope. Only the orchestrator
// initiates transitions that span components.
type Orchestrator struct {
	backend Backend
	store   *session.Store
	agents  *agent.Registry
	library *media.Library
	ledger  *selection.Ledger
	notes   *notify.Center
	log     zerolog.Logger

	retryDelay time.Duration
	now        func() time.Time

	sending atomic.Bool
	initMu  sync.Mutex

	mu          sync.Mutex
	session     models.Session
	history     []models.ChatHistoryEntry
	initialized bool
}

func New(backend Backend, store *session.Store, notes *notify.Center, log zerolog.Logger, opts ...Option) *Orchestrator {
	log = log.With().Str("component", "chat").Logger()
	o := &Orchestrator{
		backend:    backend,
		store:      store,
		agents:     agent.NewRegistry(backend, log),
		library:    media.NewLibrary(backend, log),
		ledger:     selection.NewLedger(backend, notes, log),
		notes:      notes,
		log:        log,
		retryDelay: time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.library.SetClock(o.now)
	return o
}

// Init restores the persisted session and loads agents, media and history.
// The agent chosen here is the initial selection and never clears the
// restored session. Calls that change the session wait until the restore is
// done. Later calls only apply the one-shot signals.
func (o *Orchestrator) Init(ctx context.Context, opts InitOptions) State {
	o.initMu.Lock()
	o.mu.Lock()
	first := !o.initialized
	o.mu.Unlock()
	if first {
		restored := o.store.Load(ctx, opts.Fresh)
		o.agents.Refresh(ctx)
		o.mu.Lock()
		if o.session.SessionID == "" {
			o.session = restored
		}
		o.initialized = true
		o.mu.Unlock()
	}
	o.initMu.Unlock()

	if first {
		o.library.Refresh(ctx)
		o.RefreshHistory(ctx)
	} else if opts.Fresh {
		o.NewConversation(ctx)
	}

	if opts.ChatID != "" && opts.ChatID != o.Session().SessionID {
		if err := o.OpenSession(ctx, opts.ChatID); err != nil {
			o.log.Warn().Err(err).Str("session_id", opts.ChatID).Msg("deep-linked session unavailable")
		}
	}
	return o.Snapshot()
}

// awaitInit blocks while a first Init is restoring the session.
func (o *Orchestrator) awaitInit() {
	o.initMu.Lock()
	o.initMu.Unlock()
}

// Snapshot returns the current state without contacting the backend.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	sess := o.session.Clone()
	history := append([]models.ChatHistoryEntry{}, o.history...)
	o.mu.Unlock()

	selected, _ := o.agents.Selected()
	return State{
		Session:       sess,
		Agents:        o.agents.Agents(),
		SelectedAgent: selected.Name,
		Media:         o.library.Items(),
		SelectedMedia: o.ledger.SelectedIDs(),
		History:       history,
		Notifications: o.notes.Active(),
		Sending:       o.sending.Load(),
	}
}

func (o *Orchestrator) Session() models.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

func (o *Orchestrator) Notifications() *notify.Center {
	return o.notes
}

// StartChat allocates a session when none is active.
func (o *Orchestrator) StartChat(ctx context.Context) (models.Session, error) {
	if err := o.ensureSession(ctx); err != nil {
		return models.Session{}, err
	}
	return o.Session(), nil
}

func (o *Orchestrator) ensureSession(ctx context.Context) error {
	o.awaitInit()
	o.mu.Lock()
	if o.session.SessionID != "" {
		if !o.session.Started {
			o.session.Started = true
			o.store.Persist(ctx, o.session)
		}
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	selectedAgent, _ := o.agents.Selected()
	selectedIDs := make(map[string]bool)
	for _, id := range o.ledger.SelectedIDs() {
		selectedIDs[id] = true
	}
	req := n8n.NewChatRequest{AgentID: selectedAgent.ID}
	if mc := buildMediaContext(o.library.Items(), selectedIDs); mc != nil {
		req.KnowledgeBase = mc
	}

	id, err := o.backend.NewChat(ctx, req)
	switch {
	case errors.Is(err, n8n.ErrNoToken) || errors.Is(err, n8n.ErrUnauthorized):
		return err
	case err != nil:
		// Any other failure, timeouts and 5xx included, still lets the user
		// chat under a local id.
		o.log.Warn().Err(err).Msg("new chat failed, using fallback session id")
		id = ""
	}
	if id == "" {
		id = fmt.Sprintf("fallback_%d", o.now().UnixMilli())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session.SessionID == "" {
		o.session.SessionID = id
	}
	o.session.Started = true
	o.store.Persist(ctx, o.session)
	o.log.Info().Str("session_id", o.session.SessionID).Msg("session started")
	return nil
}

// Send appends a user turn, submits it and appends the assistant reply.
// Only one send may be in flight; a concurrent call gets ErrSendInFlight.
// A failed submission appends ErrorReply rather than returning an error,
// except when authentication is missing.
func (o *Orchestrator) Send(ctx context.Context, text string) (models.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return models.Message{}, ErrEmptyMessage
	}
	if !o.sending.CompareAndSwap(false, true) {
		return models.Message{}, ErrSendInFlight
	}
	defer o.sending.Store(false)
	defer o.ledger.ConsumeScraped()

	if err := o.ensureSession(ctx); err != nil {
		return models.Message{}, err
	}

	o.mu.Lock()
	sessionID := o.session.SessionID
	o.appendLocked(ctx, models.NewMessage(uuid.NewString(), models.RoleUser, text, o.now()))
	o.mu.Unlock()

	scraped := o.ledger.ScrapedForPrompt()
	selectedAgent, _ := o.agents.Selected()
	req := n8n.ChatRequest{
		SessionID:  sessionID,
		UserPrompt: BuildPrompt(text, scraped),
		AgentID:    selectedAgent.ID,
	}
	if payload := scrapedPayload(scraped); payload != nil {
		req.ScrapedContent = payload
	}
	if kb, err := o.backend.KnowledgeBase(ctx); err != nil {
		o.log.Warn().Err(err).Msg("knowledge base unavailable")
	} else if kb != "" {
		req.KnowledgeBase = kb
	}

	reply := ErrorReply
	resp, err := o.backend.SendChat(ctx, req)
	switch {
	case errors.Is(err, n8n.ErrNoToken) || errors.Is(err, n8n.ErrUnauthorized):
		return models.Message{}, err
	case err != nil:
		o.log.Error().Err(err).Str("session_id", sessionID).Msg("chat send failed")
	default:
		reply = ExtractReply(resp)
	}

	msg := models.NewMessage(uuid.NewString(), models.RoleAssistant, reply, o.now())
	o.mu.Lock()
	if o.session.SessionID == sessionID {
		o.appendLocked(ctx, msg)
	}
	o.mu.Unlock()
	return msg, nil
}

func (o *Orchestrator) appendLocked(ctx context.Context, msg models.Message) {
	o.session.Messages = append(o.session.Messages, msg)
	o.store.Persist(ctx, o.session)
}

// NewConversation drops the active session.
func (o *Orchestrator) NewConversation(ctx context.Context) models.Session {
	o.awaitInit()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearLocked(ctx)
	return o.session.Clone()
}

func (o *Orchestrator) clearLocked(ctx context.Context) {
	if o.session.SessionID != "" {
		o.log.Info().Str("session_id", o.session.SessionID).Msg("session cleared")
	}
	o.session = o.store.Clear(ctx)
	o.ledger.Reset()
}

// SelectAgent switches the active agent. A change clears the active session
// once Init has completed.
func (o *Orchestrator) SelectAgent(ctx context.Context, name string) bool {
	o.awaitInit()
	if !o.agents.Select(name) {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.initialized {
		o.clearLocked(ctx)
	}
	return true
}

// RefreshAgents reloads the agent list, keeping the selection when possible.
func (o *Orchestrator) RefreshAgents(ctx context.Context) []models.Agent {
	o.awaitInit()
	before, _ := o.agents.Selected()
	agents := o.agents.Refresh(ctx)
	after, _ := o.agents.Selected()
	if before.Name != "" && before.Name != after.Name {
		o.mu.Lock()
		if o.initialized {
			o.clearLocked(ctx)
		}
		o.mu.Unlock()
	}
	return agents
}

// OpenSession loads a past session and makes it active.
func (o *Orchestrator) OpenSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	o.awaitInit()
	records, err := o.backend.ChatMessages(ctx, sessionID)
	if err != nil {
		o.notes.Error("Could not load that conversation.")
		return fmt.Errorf("load session %s: %w", sessionID, err)
	}
	messages := session.NormalizeHistory(records)

	o.mu.Lock()
	defer o.mu.Unlock()
	o.ledger.Reset()
	o.session = models.Session{SessionID: sessionID, Started: true, Messages: messages}
	o.store.Persist(ctx, o.session)
	return nil
}

// SetPendingPrompt stores a quick-start prompt for the next state load.
func (o *Orchestrator) SetPendingPrompt(ctx context.Context, prompt string) {
	o.store.SetPendingPrompt(ctx, prompt)
}

// TakePendingPrompt consumes the stored quick-start prompt.
func (o *Orchestrator) TakePendingPrompt(ctx context.Context) string {
	return o.store.TakePendingPrompt(ctx)
}

// Agents exposes the registry for read access.
func (o *Orchestrator) Agents() *agent.Registry {
	return o.agents
}
