package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"copydesk/internal/auth"
	"copydesk/internal/brand"
	"copydesk/internal/chat"
	"copydesk/internal/n8n"
	"copydesk/internal/selection"
	"copydesk/internal/worker"
)

const defaultMaxUploadBytes = 25 << 20 // 25 MB

// Options tune the HTTP surface.
type Options struct {
	MaxUploadBytes int64
	SecureCookies  bool
}

// Handler wires HTTP routes to the per-scope chat orchestrators and proxies
// the remaining webhook calls.
type Handler struct {
	auth      *auth.Service
	workers   *worker.Manager
	client    *n8n.Client
	log       zerolog.Logger
	maxUpload int64
	secure    bool

	brandMu sync.Mutex
	brands  map[string]brandEntry
}

type brandEntry struct {
	token  string
	loader *brand.Loader
}

// NewHandler constructs a Handler instance. client is the token-less base
// client; each request derives its own with the caller's token.
func NewHandler(authService *auth.Service, workers *worker.Manager, client *n8n.Client, log zerolog.Logger, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		auth:      authService,
		workers:   workers,
		client:    client,
		log:       log.With().Str("component", "api").Logger(),
		maxUpload: opts.MaxUploadBytes,
		secure:    opts.SecureCookies,
		brands:    make(map[string]brandEntry),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.POST("/auth/login", h.login)

	secured := api.Group("")
	secured.Use(h.auth.Middleware(), h.auth.CSRFMiddleware())
	secured.POST("/auth/logout", h.logout)

	secured.GET("/chat/state", h.chatState)
	secured.POST("/chat/start", h.startChat)
	secured.POST("/chat/messages", h.sendMessage)
	secured.POST("/chat/new", h.newConversation)
	secured.POST("/chat/pending-prompt", h.setPendingPrompt)

	secured.GET("/agents", h.listAgents)
	secured.PUT("/agents/selected", h.selectAgent)

	secured.GET("/history", h.listHistory)
	secured.GET("/history/:session_id", h.openHistory)
	secured.DELETE("/history/:session_id", h.deleteHistory)

	secured.GET("/media", h.listMedia)
	secured.POST("/media", h.uploadMedia)
	secured.POST("/media/url", h.addMediaURL)
	secured.PUT("/media/:id/selection", h.selectMedia)
	secured.DELETE("/media/:id", h.deleteMedia)

	secured.GET("/knowledge-base", h.getKnowledgeBase)
	secured.POST("/knowledge-base", h.saveKnowledgeBase)

	secured.GET("/notifications", h.listNotifications)
	secured.DELETE("/notifications/:id", h.dismissNotification)
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
		return
	}
	token, err := h.client.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, n8n.ErrUnauthorized) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.fail(c, err)
		return
	}
	if _, err := h.auth.Scope(token); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	csrfToken, err := h.auth.NewCSRFToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate csrf token failed"})
		return
	}
	h.setAuthCookies(c, token, csrfToken)
	c.JSON(http.StatusOK, gin.H{"access_token": token, "csrf_token": csrfToken})
}

func (h *Handler) logout(c *gin.Context) {
	if scope, ok := auth.ScopeFromContext(c); ok {
		h.workers.Purge(scope, "logout")
		h.forgetBrand(scope)
	}
	h.clearAuthCookies(c)
	c.Status(http.StatusNoContent)
}

// orchestrator returns the caller's orchestrator, initializing a new one
// with no one-shot signals.
func (h *Handler) orchestrator(c *gin.Context) (*chat.Orchestrator, string, bool) {
	scope, token, ok := h.caller(c)
	if !ok {
		return nil, "", false
	}
	orch, created := h.workers.Get(scope, token)
	if created {
		orch.Init(c.Request.Context(), chat.InitOptions{})
	}
	return orch, scope, true
}

func (h *Handler) caller(c *gin.Context) (scope, token string, ok bool) {
	scope, ok = auth.ScopeFromContext(c)
	if !ok {
		auth.Unauthorized(c, "authorization required")
		return "", "", false
	}
	token, _ = auth.AuthTokenFromContext(c)
	return scope, token, true
}

// fail maps domain and webhook errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var werr *n8n.Error
	switch {
	case errors.Is(err, n8n.ErrNoToken), errors.Is(err, n8n.ErrUnauthorized):
		if scope, ok := auth.ScopeFromContext(c); ok {
			h.workers.Purge(scope, "unauthorized")
			h.forgetBrand(scope)
		}
		h.clearAuthCookies(c)
		auth.Unauthorized(c, "session expired, please sign in again")
	case errors.Is(err, chat.ErrSendInFlight), errors.Is(err, selection.ErrPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrEmptyMessage), errors.Is(err, chat.ErrNoSession):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrUnknownMedia), errors.Is(err, n8n.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case n8n.IsTimeout(err):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "backend timed out"})
	case errors.As(err, &werr):
		h.log.Warn().Err(err).Str("path", c.FullPath()).Msg("webhook call failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "backend request failed"})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func queryBool(c *gin.Context, key string) bool {
	v, err := strconv.ParseBool(c.Query(key))
	return err == nil && v
}

func (h *Handler) setAuthCookies(c *gin.Context, authToken, csrfToken string) {
	ttl := int(h.auth.TokenTTL().Seconds())
	if ttl <= 0 {
		ttl = 3600
	}
	secure := h.secureCookies()
	setCookie(c, &http.Cookie{
		Name:     h.auth.AuthCookieName(),
		Value:    authToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	setCookie(c, &http.Cookie{
		Name:     h.auth.CSRFCookieName(),
		Value:    csrfToken,
		MaxAge:   ttl,
		Path:     "/",
		Secure:   secure,
		HttpOnly: false,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *Handler) clearAuthCookies(c *gin.Context) {
	for _, name := range []string{h.auth.AuthCookieName(), h.auth.CSRFCookieName()} {
		setCookie(c, &http.Cookie{
			Name:     name,
			Value:    "",
			MaxAge:   -1,
			Path:     "/",
			Secure:   h.secureCookies(),
			HttpOnly: name == h.auth.AuthCookieName(),
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (h *Handler) secureCookies() bool {
	return h.secure || gin.Mode() == gin.ReleaseMode
}

func setCookie(c *gin.Context, ck *http.Cookie) {
	if ck == nil {
		return
	}
	http.SetCookie(c.Writer, ck)
}
