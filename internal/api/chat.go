package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"copydesk/internal/chat"
)

type stateResponse struct {
	chat.State
	PendingPrompt string `json:"pending_prompt,omitempty"`
}

// chatState is the page-load call. fresh and chatid are one-shot signals;
// refresh reloads agents, media and history on an existing orchestrator.
func (h *Handler) chatState(c *gin.Context) {
	scope, token, ok := h.caller(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	orch, created := h.workers.Get(scope, token)
	orch.Init(ctx, chat.InitOptions{
		Fresh:  queryBool(c, "fresh"),
		ChatID: strings.TrimSpace(c.Query("chatid")),
	})
	if !created && queryBool(c, "refresh") {
		orch.RefreshAgents(ctx)
		orch.RefreshMedia(ctx)
		orch.RefreshHistory(ctx)
	}
	c.JSON(http.StatusOK, stateResponse{
		State:         orch.Snapshot(),
		PendingPrompt: orch.TakePendingPrompt(ctx),
	})
}

func (h *Handler) startChat(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	sess, err := orch.StartChat(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

type sendRequest struct {
	Message string `json:"message"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	reply, err := orch.Send(c.Request.Context(), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reply": reply, "session": orch.Session()})
}

func (h *Handler) newConversation(c *gin.Context) {
	orch, scope, ok := h.orchestrator(c)
	if !ok {
		return
	}
	sess := orch.NewConversation(c.Request.Context())
	h.workers.Invalidate(scope, "new conversation")
	c.JSON(http.StatusOK, gin.H{"session": sess})
}

type pendingPromptRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) setPendingPrompt(c *gin.Context) {
	var req pendingPromptRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	}
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	orch.SetPendingPrompt(c.Request.Context(), req.Prompt)
	c.Status(http.StatusNoContent)
}

func (h *Handler) listAgents(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	agents := orch.Agents().Agents()
	if queryBool(c, "refresh") {
		agents = orch.RefreshAgents(c.Request.Context())
	}
	selected, _ := orch.Agents().Selected()
	c.JSON(http.StatusOK, gin.H{"agents": agents, "selected": selected.Name})
}

type selectAgentRequest struct {
	Name string `json:"name"`
}

func (h *Handler) selectAgent(c *gin.Context) {
	var req selectAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "agent name is required"})
		return
	}
	orch, scope, ok := h.orchestrator(c)
	if !ok {
		return
	}
	known := false
	for _, a := range orch.Agents().Agents() {
		if a.Name == req.Name {
			known = true
			break
		}
	}
	if !known {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown agent"})
		return
	}
	changed := orch.SelectAgent(c.Request.Context(), req.Name)
	if changed {
		h.workers.Invalidate(scope, "agent changed")
	}
	c.JSON(http.StatusOK, gin.H{"changed": changed, "selected": req.Name, "session": orch.Session()})
}

func (h *Handler) listHistory(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": orch.RefreshHistory(c.Request.Context())})
}

func (h *Handler) openHistory(c *gin.Context) {
	orch, scope, ok := h.orchestrator(c)
	if !ok {
		return
	}
	if err := orch.OpenSession(c.Request.Context(), c.Param("session_id")); err != nil {
		h.fail(c, err)
		return
	}
	h.workers.Invalidate(scope, "session opened")
	c.JSON(http.StatusOK, gin.H{"session": orch.Session()})
}

func (h *Handler) deleteHistory(c *gin.Context) {
	orch, scope, ok := h.orchestrator(c)
	if !ok {
		return
	}
	if err := orch.DeleteHistory(c.Request.Context(), c.Param("session_id")); err != nil {
		h.fail(c, err)
		return
	}
	h.workers.Invalidate(scope, "session deleted")
	c.Status(http.StatusNoContent)
}

func (h *Handler) listNotifications(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": orch.Notifications().Active()})
}

func (h *Handler) dismissNotification(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	if !orch.Notifications().Dismiss(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	c.Status(http.StatusNoContent)
}
