package chat

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"copydesk/internal/n8n"
	"copydesk/internal/notify"
	"copydesk/internal/session"
	"copydesk/internal/storage"
)

type fakeBackend struct {
	mu sync.Mutex

	agents      []n8n.AgentRecord
	agentsGate  chan struct{}
	agentsSeen  chan struct{}
	newChatID   string
	newChatErr  error
	newChatReqs []n8n.NewChatRequest

	chatReply any
	chatErr   error
	chatReqs  []n8n.ChatRequest
	chatGate  chan struct{}

	historyResults []historyResult
	historyCalls   int

	messages    map[string][]map[string]any
	deleted     []string
	kb          string
	ragUploads  []string
	media       []n8n.MediaRecord
	scraped     []n8n.ScrapedRecord
	transcripts map[string]n8n.TranscriptResult
}

type historyResult struct {
	records []n8n.HistoryRecord
	err     error
}

func (f *fakeBackend) ListAgents(context.Context) ([]n8n.AgentRecord, error) {
	if f.agentsSeen != nil {
		close(f.agentsSeen)
		f.agentsSeen = nil
	}
	if f.agentsGate != nil {
		<-f.agentsGate
	}
	return f.agents, nil
}

func (f *fakeBackend) ListMedia(context.Context) ([]n8n.MediaRecord, error) {
	return f.media, nil
}

func (f *fakeBackend) ListScraped(context.Context) ([]n8n.ScrapedRecord, error) {
	return f.scraped, nil
}

func (f *fakeBackend) RagUpload(_ context.Context, _, mediaID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ragUploads = append(f.ragUploads, mediaID)
	return nil
}

func (f *fakeBackend) RagDelete(context.Context, string, string) error { return nil }

func (f *fakeBackend) NewChat(_ context.Context, req n8n.NewChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.newChatReqs = append(f.newChatReqs, req)
	return f.newChatID, f.newChatErr
}

func (f *fakeBackend) SendChat(_ context.Context, req n8n.ChatRequest) (any, error) {
	if f.chatGate != nil {
		<-f.chatGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReqs = append(f.chatReqs, req)
	return f.chatReply, f.chatErr
}

func (f *fakeBackend) ChatHistory(context.Context) ([]n8n.HistoryRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.historyCalls
	f.historyCalls++
	if len(f.historyResults) == 0 {
		return nil, nil
	}
	if i >= len(f.historyResults) {
		i = len(f.historyResults) - 1
	}
	return f.historyResults[i].records, f.historyResults[i].err
}

func (f *fakeBackend) ChatMessages(_ context.Context, sessionID string) ([]map[string]any, error) {
	msgs, ok := f.messages[sessionID]
	if !ok {
		return nil, &n8n.Error{Op: "chat_messages", Kind: n8n.KindStatus, StatusCode: 404}
	}
	return msgs, nil
}

func (f *fakeBackend) DeleteChat(_ context.Context, sessionID string) error {
	f.deleted = append(f.deleted, sessionID)
	return nil
}

func (f *fakeBackend) KnowledgeBase(context.Context) (string, error) {
	return f.kb, nil
}

func (f *fakeBackend) UploadMedia(_ context.Context, filename, contentType string, _ io.Reader) (*n8n.MediaRecord, error) {
	return &n8n.MediaRecord{FileName: filename, MimeType: contentType}, nil
}

func (f *fakeBackend) DeleteMedia(context.Context, string) error { return nil }

func (f *fakeBackend) DeleteScraped(context.Context, string, string) error { return nil }

func (f *fakeBackend) Scrape(_ context.Context, url string) (*n8n.ScrapedRecord, error) {
	return &n8n.ScrapedRecord{ResourceID: "r9", Title: "Scraped", URL: url, Content: "Page body"}, nil
}

func (f *fakeBackend) Transcribe(_ context.Context, url string) (*n8n.TranscriptResult, error) {
	if res, ok := f.transcripts[url]; ok {
		return &res, nil
	}
	return &n8n.TranscriptResult{Title: "Video", URL: url, Transcript: "spoken words"}, nil
}

type harness struct {
	orch    *Orchestrator
	backend *fakeBackend
	kv      *storage.MemoryStore
	notes   *notify.Center
	store   *session.Store
}

func newHarness(t *testing.T, backend *fakeBackend) *harness {
	t.Helper()
	kv := storage.NewMemoryStore()
	store := session.NewStore(kv, "scope", zerolog.Nop())
	notes := notify.NewCenter(time.Minute)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	orch := New(backend, store, notes, zerolog.Nop(),
		WithRetryDelay(time.Millisecond),
		WithClock(func() time.Time { return fixed }))
	return &harness{orch: orch, backend: backend, kv: kv, notes: notes, store: store}
}

func timeoutErr() error {
	return &n8n.Error{Op: "chat_history", Kind: n8n.KindTimeout, Err: context.DeadlineExceeded}
}
