package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"finreview/internal/domain"
	"finreview/internal/service"
)

// RecordHandler serves saved financial records and their analytics.
type RecordHandler struct {
	recordService service.RecordService
}

// NewRecordHandler creates a new RecordHandler.
func NewRecordHandler(recordService service.RecordService) *RecordHandler {
	return &RecordHandler{recordService: recordService}
}

// List handles GET /api/v1/records?limit=
func (h *RecordHandler) List(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
			return
		}
		limit = n
	}

	records, err := h.recordService.ListRecent(c.Request.Context(), limit)
	if err != nil {
		HandleError(c, err)
		return
	}
	if records == nil {
		records = []domain.FinancialRecord{}
	}
	RespondOK(c, records)
}

// GetByID handles GET /api/v1/records/:id
func (h *RecordHandler) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "record")
	if !ok {
		return
	}
	rec, err := h.recordService.GetByID(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, rec)
}

// Analytics handles GET /api/v1/analytics
func (h *RecordHandler) Analytics(c *gin.Context) {
	report, err := h.recordService.Analytics(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, report)
}
