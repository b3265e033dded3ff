// Package n8n calls the workflow-automation webhooks that own authentication,
// agent execution, media storage, scraping and the knowledge base.
package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"copydesk/internal/config"
)

// Client is safe for concurrent use. WithToken derives per-user clients that
// share the underlying connection pool.
type Client struct {
	http        *resty.Client
	paths       config.WebhookPaths
	token       string
	listTimeout time.Duration
	chatTimeout time.Duration
	log         zerolog.Logger
}

type Option func(*Client)

// WithDebugLogging dumps each request and response at debug level.
func WithDebugLogging(enabled bool) Option {
	return func(c *Client) {
		if !enabled {
			return
		}
		base := c.http.GetClient().Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.http.SetTransport(&debugTransport{base: base, log: c.log})
	}
}

// WithTimeouts overrides the list and chat deadlines.
func WithTimeouts(list, chat time.Duration) Option {
	return func(c *Client) {
		if list > 0 {
			c.listTimeout = list
		}
		if chat > 0 {
			c.chatTimeout = chat
		}
	}
}

// New builds a webhook client for cfg.
func New(cfg config.N8NConfig, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetHeader("Accept", "application/json"),
		paths:       cfg.Paths,
		listTimeout: cfg.ListTimeoutDuration(),
		chatTimeout: cfg.ChatTimeoutDuration(),
		log:         log.With().Str("component", "n8n").Logger(),
	}
	if c.listTimeout <= 0 {
		c.listTimeout = 10 * time.Second
	}
	if c.chatTimeout <= 0 {
		c.chatTimeout = 30 * time.Second
	}
	if os.Getenv("COPYDESK_DEBUG") == "true" {
		opts = append(opts, WithDebugLogging(true))
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithToken returns a client that authenticates as token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// Token returns the bound access token.
func (c *Client) Token() string {
	return c.token
}

func (c *Client) do(ctx context.Context, op, method, path string, timeout time.Duration, authed bool, build func(*resty.Request)) (*resty.Response, error) {
	if authed && c.token == "" {
		return nil, ErrNoToken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := c.http.R().SetContext(ctx)
	if authed {
		req.SetAuthToken(c.token)
	}
	if build != nil {
		build(req)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	webhookDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		werr := classifyTransport(op, err)
		webhookRequestsTotal.WithLabelValues(op, werr.Kind.String()).Inc()
		c.log.Warn().Err(err).Str("op", op).Str("kind", werr.Kind.String()).Msg("webhook transport failure")
		return nil, werr
	}
	if resp.IsError() {
		webhookRequestsTotal.WithLabelValues(op, "status").Inc()
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode()).Msg("webhook returned error status")
		return resp, statusError(op, resp.StatusCode(), resp.String())
	}
	webhookRequestsTotal.WithLabelValues(op, "ok").Inc()
	return resp, nil
}

// SignIn exchanges credentials for an access token.
func (c *Client) SignIn(ctx context.Context, email, password string) (string, error) {
	resp, err := c.do(ctx, "sign_in", http.MethodPost, c.paths.SignIn, c.listTimeout, false, func(r *resty.Request) {
		r.SetBody(map[string]string{"email": email, "password": password})
	})
	if err != nil {
		return "", err
	}
	token := firstString(resp.Body(), "access_token", "token", "accessToken")
	if token == "" {
		return "", fmt.Errorf("sign in: response carried no token")
	}
	return token, nil
}

// ListAgents fetches the selectable agents.
func (c *Client) ListAgents(ctx context.Context) ([]AgentRecord, error) {
	resp, err := c.do(ctx, "agents", http.MethodGet, c.paths.Agents, c.listTimeout, true, nil)
	if err != nil {
		return nil, err
	}
	agents, err := decodeList[AgentRecord](resp.Body(), "agents", "data")
	if err != nil {
		return nil, fmt.Errorf("decode agents: %w", err)
	}
	return agents, nil
}

// NewChat allocates a session id. An empty id with a nil error means the
// webhook answered without one.
func (c *Client) NewChat(ctx context.Context, req NewChatRequest) (string, error) {
	resp, err := c.do(ctx, "new_chat", http.MethodPost, c.paths.NewChat, c.listTimeout, true, func(r *resty.Request) {
		r.SetBody(req)
	})
	if err != nil {
		return "", err
	}
	return firstString(resp.Body(), "session_id", "sessionId"), nil
}

// SendChat submits a user turn and returns the decoded response document.
// Bodies that are not JSON come back as a string.
func (c *Client) SendChat(ctx context.Context, req ChatRequest) (any, error) {
	resp, err := c.do(ctx, "chat_window", http.MethodPost, c.paths.ChatWindow, c.chatTimeout, true, func(r *resty.Request) {
		r.SetBody(req)
	})
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return resp.String(), nil
	}
	return out, nil
}

// ChatHistory lists past sessions.
func (c *Client) ChatHistory(ctx context.Context) ([]HistoryRecord, error) {
	resp, err := c.do(ctx, "chat_history", http.MethodGet, c.paths.ChatHistory, c.listTimeout, true, nil)
	if err != nil {
		return nil, err
	}
	records, err := decodeList[HistoryRecord](resp.Body(), "history", "sessions", "data")
	if err != nil {
		return nil, fmt.Errorf("decode chat history: %w", err)
	}
	return records, nil
}

// ChatMessages returns the raw message records of a session.
func (c *Client) ChatMessages(ctx context.Context, sessionID string) ([]map[string]any, error) {
	resp, err := c.do(ctx, "chat_messages", http.MethodGet, c.paths.ChatMessages, c.listTimeout, true, func(r *resty.Request) {
		r.SetQueryParam("session_id", sessionID)
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeList[map[string]any](resp.Body(), "messages", "data")
	if err != nil {
		return nil, fmt.Errorf("decode chat messages: %w", err)
	}
	return records, nil
}

// DeleteChat removes a session.
func (c *Client) DeleteChat(ctx context.Context, sessionID string) error {
	_, err := c.do(ctx, "chat_delete", http.MethodPost, c.paths.ChatDelete, c.listTimeout, true, func(r *resty.Request) {
		r.SetBody(map[string]string{"session_id": sessionID})
	})
	return err
}

// ListMedia lists uploaded files.
func (c *Client) ListMedia(ctx context.Context) ([]MediaRecord, error) {
	resp, err := c.do(ctx, "media_list", http.MethodGet, c.paths.MediaList, c.listTimeout, true, nil)
	if err != nil {
		return nil, err
	}
	records, err := decodeList[MediaRecord](resp.Body(), "files", "media", "data")
	if err != nil {
		return nil, fmt.Errorf("decode media: %w", err)
	}
	return records, nil
}

// UploadMedia sends one file as a multipart upload.
func (c *Client) UploadMedia(ctx context.Context, filename, contentType string, body io.Reader) (*MediaRecord, error) {
	resp, err := c.do(ctx, "media_upload", http.MethodPost, c.paths.MediaUpload, c.chatTimeout, true, func(r *resty.Request) {
		r.SetMultipartField("file", filename, contentType, body)
		r.SetFormData(map[string]string{"file_name": filename, "file_type": contentType})
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeList[MediaRecord](resp.Body(), "file", "data")
	if err != nil || len(records) == 0 {
		return &MediaRecord{FileName: filename, MimeType: contentType}, nil
	}
	rec := records[0]
	if rec.FileName == "" {
		rec.FileName = filename
	}
	if rec.MimeType == "" {
		rec.MimeType = contentType
	}
	return &rec, nil
}

// DeleteMedia removes an uploaded file by name.
func (c *Client) DeleteMedia(ctx context.Context, fileName string) error {
	_, err := c.do(ctx, "media_delete", http.MethodPost, c.paths.MediaDelete, c.listTimeout, true, func(r *resty.Request) {
		r.SetBody(map[string]string{"file_name": fileName})
	})
	return err
}

// ListScraped lists scraped webpage and video records.
func (c *Client) ListScraped(ctx context.Context) ([]ScrapedRecord, error) {
	resp, err := c.do(ctx, "scraped_list", http.MethodGet, c.paths.Scraped, c.listTimeout, true, nil)
	if err != nil {
		return nil, err
	}
	records, err := decodeList[ScrapedRecord](resp.Body(), "contents", "data")
	if err != nil {
		return nil, fmt.Errorf("decode scraped contents: %w", err)
	}
	return records, nil
}

// DeleteScraped removes a scraped record by resource id, or by file name
// when no resource id is known.
func (c *Client) DeleteScraped(ctx context.Context, fileName, resourceID string) error {
	if fileName == "" && resourceID == "" {
		return errors.New("delete scraped: file name or resource id required")
	}
	_, err := c.do(ctx, "scraped_delete", http.MethodDelete, c.paths.Scraped, c.listTimeout, true, func(r *resty.Request) {
		if resourceID != "" {
			r.SetQueryParam("resource_id", resourceID)
		}
		if fileName != "" {
			r.SetQueryParam("file_name", fileName)
		}
	})
	return err
}

// Scrape asks the backend to scrape url and returns the stored record.
func (c *Client) Scrape(ctx context.Context, url string) (*ScrapedRecord, error) {
	resp, err := c.do(ctx, "scrape", http.MethodPost, c.paths.Scrape, c.chatTimeout, true, func(r *resty.Request) {
		r.SetBody(map[string]string{"url": url})
	})
	if err != nil {
		return nil, err
	}
	records, err := decodeList[ScrapedRecord](resp.Body(), "data")
	if err != nil || len(records) == 0 {
		return nil, fmt.Errorf("scrape: unexpected response")
	}
	rec := records[0]
	if rec.URL == "" {
		rec.URL = url
	}
	return &rec, nil
}

// Transcribe requests an immediate YouTube transcription.
func (c *Client) Transcribe(ctx context.Context, url string) (*TranscriptResult, error) {
	resp, err := c.do(ctx, "transcribe", http.MethodPost, c.paths.Transcribe, c.chatTimeout, true, func(r *resty.Request) {
		r.SetBody(map[string]string{"url": url})
	})
	if err != nil {
		return nil, err
	}
	out := &TranscriptResult{
		Title:      firstString(resp.Body(), "title"),
		URL:        url,
		Transcript: firstString(resp.Body(), "transcript", "text", "content"),
	}
	if out.Transcript == "" {
		return nil, fmt.Errorf("transcribe: response carried no transcript")
	}
	return out, nil
}

// RagUpload attaches a media item to the session's retrieval context.
func (c *Client) RagUpload(ctx context.Context, sessionID, mediaID string) error {
	return c.rag(ctx, "rag_upload", c.paths.RagUpload, sessionID, mediaID)
}

// RagDelete detaches a media item from the session's retrieval context.
func (c *Client) RagDelete(ctx context.Context, sessionID, mediaID string) error {
	return c.rag(ctx, "rag_delete", c.paths.RagDelete, sessionID, mediaID)
}

func (c *Client) rag(ctx context.Context, op, path, sessionID, mediaID string) error {
	_, err := c.do(ctx, op, http.MethodPost, path, c.listTimeout, true, func(r *resty.Request) {
		r.SetBody(ragRequest{AccessToken: c.token, SessionID: sessionID, MediaID: mediaID})
	})
	return err
}

// KnowledgeBase fetches the brand knowledge-base snapshot.
func (c *Client) KnowledgeBase(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, "knowledge_base", http.MethodGet, c.paths.KnowledgeBase, c.listTimeout, true, nil)
	if err != nil {
		return "", err
	}
	return firstString(resp.Body(), "content", "knowledge_base"), nil
}

// SaveKnowledgeBase replaces the brand knowledge-base content.
func (c *Client) SaveKnowledgeBase(ctx context.Context, content string) error {
	_, err := c.do(ctx, "knowledge_base_save", http.MethodPost, c.paths.KnowledgeBase, c.listTimeout, true, func(r *resty.Request) {
		r.SetBody(map[string]string{"content": content})
	})
	return err
}
