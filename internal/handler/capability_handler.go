package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"finreview/internal/domain"
	"finreview/internal/service"
	"finreview/internal/validator"
)

// CapabilityHandler exposes extraction, validation, enforcement, mapping and
// standardization without a review session.
type CapabilityHandler struct {
	capabilities   service.CapabilityService
	maxUploadBytes int64
}

// NewCapabilityHandler creates a new CapabilityHandler.
func NewCapabilityHandler(capabilities service.CapabilityService, maxUploadBytes int64) *CapabilityHandler {
	return &CapabilityHandler{capabilities: capabilities, maxUploadBytes: maxUploadBytes}
}

// outcomeBody is how a capability outcome is rendered. A failed capability is
// still a 200: status says what happened and result carries the fallback.
type outcomeBody struct {
	Status domain.OutcomeStatus `json:"status"`
	Notes  []string             `json:"notes,omitempty"`
	Error  string               `json:"error,omitempty"`
	Result interface{}          `json:"result"`
}

func respondOutcome[T any](c *gin.Context, out domain.Outcome[T]) {
	RespondOK(c, outcomeBody{
		Status: out.Status,
		Notes:  out.Notes,
		Error:  out.ErrorText(),
		Result: out.Value,
	})
}

// Extract handles POST /api/v1/extract
func (h *CapabilityHandler) Extract(c *gin.Context) {
	data, filename, ok := readUpload(c, h.maxUploadBytes)
	if !ok {
		return
	}
	out, err := h.capabilities.Extract(c.Request.Context(), filename, data)
	if err != nil {
		HandleError(c, err)
		return
	}
	respondOutcome(c, out)
}

// ValidateField handles POST /api/v1/validate-field
func (h *CapabilityHandler) ValidateField(c *gin.Context) {
	var req struct {
		FieldValue   *string                 `json:"fieldValue"`
		FieldName    string                  `json:"fieldName"`
		FieldType    string                  `json:"fieldType"`
		Context      string                  `json:"context"`
		UseRulesOnly bool                    `json:"useRulesOnly"`
		FormData     *domain.FinancialRecord `json:"formData"`
		Section      domain.Section          `json:"section"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FieldValue == nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "fieldValue is required")
		return
	}
	if req.Section != "" && !req.Section.Valid() {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "unknown section "+string(req.Section))
		return
	}

	res := h.capabilities.ValidateField(c.Request.Context(), validator.FieldRequest{
		Value:     *req.FieldValue,
		FieldName: req.FieldName,
		FieldType: req.FieldType,
		Context:   req.Context,
		RulesOnly: req.UseRulesOnly,
	}, req.FormData, req.Section)
	RespondOK(c, res)
}

// ValidationRules handles GET /api/v1/validation/rules
func (h *CapabilityHandler) ValidationRules(c *gin.Context) {
	RespondOK(c, h.capabilities.ValidationRules())
}

// EnforceFields handles POST /api/v1/enforce-fields
func (h *CapabilityHandler) EnforceFields(c *gin.Context) {
	var req struct {
		FormData *domain.FinancialRecord `json:"formData"`
		Strict   bool                    `json:"strict"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.FormData == nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "formData is required")
		return
	}
	respondOutcome(c, h.capabilities.EnforceFields(c.Request.Context(), req.FormData, req.Strict))
}

// EnforcementRules handles GET /api/v1/enforce-fields/rules
func (h *CapabilityHandler) EnforcementRules(c *gin.Context) {
	RespondOK(c, h.capabilities.EnforcementRules())
}

// SmartMapping handles POST /api/v1/smart-mapping
func (h *CapabilityHandler) SmartMapping(c *gin.Context) {
	var req struct {
		ExtractedData json.RawMessage `json:"extractedData"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ExtractedData) == 0 || string(req.ExtractedData) == "null" {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "extractedData is required")
		return
	}
	res, err := h.capabilities.SmartMap(c.Request.Context(), req.ExtractedData)
	if err != nil {
		HandleError(c, err)
		return
	}
	RespondOK(c, res)
}

// MappingFields handles GET /api/v1/smart-mapping/fields
func (h *CapabilityHandler) MappingFields(c *gin.Context) {
	RespondOK(c, gin.H{"fieldCategories": domain.SectionFields})
}

// Standardize handles POST /api/v1/standardize
func (h *CapabilityHandler) Standardize(c *gin.Context) {
	var req struct {
		Text         string `json:"text"`
		FieldType    string `json:"fieldType"`
		UseRulesOnly bool   `json:"useRulesOnly"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	respondOutcome(c, h.capabilities.Standardize(c.Request.Context(), req.Text, req.FieldType, req.UseRulesOnly))
}

// StandardizationRules handles GET /api/v1/standardize/rules
func (h *CapabilityHandler) StandardizationRules(c *gin.Context) {
	RespondOK(c, gin.H{"rules": h.capabilities.StandardizationRules()})
}
