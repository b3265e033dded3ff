package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"copydesk/internal/brand"
)

// brandLoader returns the scope's cached loader, rebuilding it when the
// token changes.
func (h *Handler) brandLoader(scope, token string) *brand.Loader {
	h.brandMu.Lock()
	defer h.brandMu.Unlock()
	if e, ok := h.brands[scope]; ok && e.token == token {
		return e.loader
	}
	l := brand.NewLoader(h.client.WithToken(token), h.log)
	h.brands[scope] = brandEntry{token: token, loader: l}
	return l
}

func (h *Handler) forgetBrand(scope string) {
	h.brandMu.Lock()
	delete(h.brands, scope)
	h.brandMu.Unlock()
}

func (h *Handler) getKnowledgeBase(c *gin.Context) {
	scope, token, ok := h.caller(c)
	if !ok {
		return
	}
	var profile brand.Profile
	err := h.brandLoader(scope, token).Load(c.Request.Context(), func(p brand.Profile) { profile = p })
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "text": profile.Render()})
}

func (h *Handler) saveKnowledgeBase(c *gin.Context) {
	var profile brand.Profile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	scope, token, ok := h.caller(c)
	if !ok {
		return
	}
	if err := h.brandLoader(scope, token).Save(c.Request.Context(), profile); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}
