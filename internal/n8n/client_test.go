package n8n

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copydesk/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := config.N8NConfig{BaseURL: srv.URL, Paths: config.DefaultPaths()}
	return New(cfg, zerolog.Nop()).WithToken("tok")
}

func TestCallsWithoutTokenShortCircuit(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := c.WithToken("").ListAgents(context.Background())
	require.ErrorIs(t, err, ErrNoToken)
	assert.False(t, called)
}

func TestListAgentsSendsBearerAndDecodesWrapped(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/agents", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"agents":[{"agent_id":"copy-writer","short_description":"Writes copy"}]}`)
	})
	agents, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "copy-writer", agents[0].AgentID)
	assert.Equal(t, "Writes copy", agents[0].ShortDescription)
}

func TestStatusErrorsAreClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"not registered"}`)
	})
	_, err := c.NewChat(context.Background(), NewChatRequest{AgentID: "a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, IsRetryable(err))

	var werr *Error
	require.True(t, errors.As(err, &werr))
	assert.Equal(t, KindStatus, werr.Kind)
	assert.Contains(t, werr.Body, "not registered")
}

func TestTimeoutsAreRetryable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	c := New(config.N8NConfig{BaseURL: srv.URL, Paths: config.DefaultPaths()}, zerolog.Nop(),
		WithTimeouts(50*time.Millisecond, 50*time.Millisecond)).WithToken("tok")

	_, err := c.ChatHistory(context.Background())
	require.Error(t, err)
	assert.True(t, IsTimeout(err))
	assert.True(t, IsRetryable(err))
}

func TestNetworkErrorsAreRetryable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	c := New(config.N8NConfig{BaseURL: url, Paths: config.DefaultPaths()}, zerolog.Nop()).WithToken("tok")

	_, err := c.ListMedia(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
}

func TestSendChatReturnsDecodedOrRawBody(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.UserPrompt == "plain" {
			_, _ = io.WriteString(w, "just text")
			return
		}
		_, _ = io.WriteString(w, `{"response":"Hi!"}`)
	})

	out, err := c.SendChat(context.Background(), ChatRequest{SessionID: "s1", UserPrompt: "Hello", AgentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"response": "Hi!"}, out)
	assert.Equal(t, "s1", got.SessionID)

	out, err = c.SendChat(context.Background(), ChatRequest{SessionID: "s1", UserPrompt: "plain"})
	require.NoError(t, err)
	assert.Equal(t, "just text", out)
}

func TestNewChatReadsSessionIDFromArray(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"session_id": 42}]`)
	})
	id, err := c.NewChat(context.Background(), NewChatRequest{AgentID: "a"})
	require.NoError(t, err)
	assert.Equal(t, "42", id)
}

func TestRagUploadCarriesAccessToken(t *testing.T) {
	var body ragRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/webhook/rag/upload", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	})
	require.NoError(t, c.RagUpload(context.Background(), "s1", "m1"))
	assert.Equal(t, ragRequest{AccessToken: "tok", SessionID: "s1", MediaID: "m1"}, body)
}

func TestDeleteScrapedPrefersResourceID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "r1", r.URL.Query().Get("resource_id"))
	})
	require.NoError(t, c.DeleteScraped(context.Background(), "", "r1"))
	require.Error(t, c.DeleteScraped(context.Background(), "", ""))
}

func TestUploadMediaSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "brief.txt", hdr.Filename)
		assert.Equal(t, "hello", string(data))
		_, _ = io.WriteString(w, `{"id": 7, "file_name": "brief.txt", "size": "5"}`)
	})
	rec, err := c.UploadMedia(context.Background(), "brief.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, FlexString("7"), rec.ID)
	assert.Equal(t, FlexInt(5), rec.Size)
	assert.Equal(t, "text/plain", rec.MimeType)
}

func TestKnowledgeBaseReadsContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":{"content":"Brand: Acme"}}`)
	})
	kb, err := c.KnowledgeBase(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Brand: Acme", kb)
}

func TestSignInWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"access_token":"jwt-value"}`)
	})
	token, err := c.WithToken("").SignIn(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "jwt-value", token)
}
