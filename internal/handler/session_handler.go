package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"finreview/internal/domain"
	"finreview/internal/middleware"
	"finreview/internal/service"
)

// SessionHandler handles review session endpoints.
type SessionHandler struct {
	reviewService  service.ReviewService
	maxUploadBytes int64
}

// NewSessionHandler creates a new SessionHandler. maxUploadBytes <= 0 means
// no limit.
func NewSessionHandler(reviewService service.ReviewService, maxUploadBytes int64) *SessionHandler {
	return &SessionHandler{reviewService: reviewService, maxUploadBytes: maxUploadBytes}
}

type fieldPathRequest struct {
	Path string `json:"path" binding:"required"`
}

// Create handles POST /api/v1/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	view, err := h.reviewService.Start(c.Request.Context(), middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondCreated(c, view)
}

// Get handles GET /api/v1/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	view, err := h.reviewService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// Upload handles POST /api/v1/sessions/:id/upload
//
// A failed extraction still returns the session: its stage is back at
// upload and last_error says why.
func (h *SessionHandler) Upload(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	data, filename, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}

	view, err := h.reviewService.Upload(c.Request.Context(), id, service.UploadInput{
		Filename: filename,
		Data:     data,
		Actor:    middleware.GetReviewer(c),
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// EditField handles PUT /api/v1/sessions/:id/fields
func (h *SessionHandler) EditField(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	var req struct {
		Path  string `json:"path" binding:"required"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "path is required")
		return
	}

	res, err := h.reviewService.EditField(c.Request.Context(), id, req.Path, req.Value, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// ConfirmField handles POST /api/v1/sessions/:id/fields/confirm
func (h *SessionHandler) ConfirmField(c *gin.Context) {
	id, path, ok := h.bindFieldPath(c)
	if !ok {
		return
	}
	view, err := h.reviewService.ConfirmField(c.Request.Context(), id, path, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// AcceptField handles POST /api/v1/sessions/:id/fields/accept
func (h *SessionHandler) AcceptField(c *gin.Context) {
	id, path, ok := h.bindFieldPath(c)
	if !ok {
		return
	}
	view, err := h.reviewService.AcceptField(c.Request.Context(), id, path, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// StandardizeField handles POST /api/v1/sessions/:id/fields/standardize
func (h *SessionHandler) StandardizeField(c *gin.Context) {
	id, path, ok := h.bindFieldPath(c)
	if !ok {
		return
	}
	res, err := h.reviewService.StandardizeField(c.Request.Context(), id, path, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// Validate handles POST /api/v1/sessions/:id/validate
func (h *SessionHandler) Validate(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	report, err := h.reviewService.Validate(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}

// ContinueAnyway handles POST /api/v1/sessions/:id/continue
func (h *SessionHandler) ContinueAnyway(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	unresolved, err := h.reviewService.ContinueAnyway(c.Request.Context(), id, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	if unresolved == nil {
		unresolved = []string{}
	}
	RespondOK(c, gin.H{"unresolved": unresolved})
}

// SetStatus handles PUT /api/v1/sessions/:id/status
func (h *SessionHandler) SetStatus(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	var req struct {
		Status domain.RecordStatus `json:"status" binding:"required"`
		Notes  string              `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "status is required")
		return
	}

	view, err := h.reviewService.SetStatus(c.Request.Context(), id, req.Status, req.Notes, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// Advance handles POST /api/v1/sessions/:id/advance
func (h *SessionHandler) Advance(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	view, err := h.reviewService.Advance(c.Request.Context(), id, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

// Export handles GET /api/v1/sessions/:id/export?format=csv|xlsx
func (h *SessionHandler) Export(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	file, err := h.reviewService.Export(c.Request.Context(), id, c.Query("format"))
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+strconv.Quote(file.Filename)+"; filename*=UTF-8''"+url.PathEscape(file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Reset handles POST /api/v1/sessions/:id/reset
func (h *SessionHandler) Reset(c *gin.Context) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return
	}
	view, err := h.reviewService.Reset(c.Request.Context(), id, middleware.GetReviewer(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, view)
}

func (h *SessionHandler) bindFieldPath(c *gin.Context) (uuid.UUID, string, bool) {
	id, ok := parseID(c, "id", "session")
	if !ok {
		return uuid.Nil, "", false
	}
	var req fieldPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "path is required")
		return uuid.Nil, "", false
	}
	return id, req.Path, true
}
