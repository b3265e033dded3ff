package api

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var allowedContentTypes = []string{
	"text/plain",
	"text/markdown",
	"text/csv",
	"application/pdf",
	"application/json",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"image/",
	"audio/",
	"video/",
}

func isAllowedContentType(ct string) bool {
	for _, allowed := range allowedContentTypes {
		if strings.HasPrefix(ct, allowed) {
			return true
		}
	}
	return false
}

// uploadContentType picks the type forwarded to the backend. Sniffing wins
// when it recognises the file; containers such as docx sniff as zip, so the
// declared type is accepted when the sniffed one is generic.
func uploadContentType(sniffed, declared string) (string, bool) {
	if isAllowedContentType(sniffed) {
		return sniffed, true
	}
	generic := strings.HasPrefix(sniffed, "application/octet-stream") || strings.HasPrefix(sniffed, "application/zip")
	if generic && isAllowedContentType(declared) {
		return declared, true
	}
	return "", false
}

func (h *Handler) listMedia(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	items := orch.RefreshMedia(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"media": items, "selected": orch.Snapshot().SelectedMedia})
}

func (h *Handler) uploadMedia(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+1<<20)
	if err := c.Request.ParseMultipartForm(h.maxUpload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form"})
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > h.maxUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, _ := io.ReadFull(f, buf)
	contentType, allowed := uploadContentType(http.DetectContentType(buf[:n]), file.Header.Get("Content-Type"))
	if !allowed {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read file failed"})
		return
	}

	ctx := c.Request.Context()
	item, err := orch.UploadMedia(ctx, filepath.Base(file.Filename), contentType, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	if sel, _ := strconv.ParseBool(c.PostForm("select")); sel {
		if err := orch.SelectMedia(ctx, item.ID, true); err != nil {
			h.log.Warn().Err(err).Str("media_id", item.ID).Msg("select after upload failed")
		}
	}
	c.JSON(http.StatusCreated, gin.H{"item": item, "selected": orch.Snapshot().SelectedMedia})
}

type urlRequest struct {
	URL string `json:"url"`
}

func (h *Handler) addMediaURL(c *gin.Context) {
	var req urlRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	item, err := orch.AddURL(c.Request.Context(), req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"item": item})
}

type selectMediaRequest struct {
	Selected *bool `json:"selected"`
}

func (h *Handler) selectMedia(c *gin.Context) {
	var req selectMediaRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Selected == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "selected is required"})
		return
	}
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	if err := orch.SelectMedia(c.Request.Context(), c.Param("id"), *req.Selected); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"selected": orch.Snapshot().SelectedMedia, "session": orch.Session()})
}

func (h *Handler) deleteMedia(c *gin.Context) {
	orch, _, ok := h.orchestrator(c)
	if !ok {
		return
	}
	if err := orch.DeleteMedia(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
