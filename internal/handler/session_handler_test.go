package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finreview/internal/domain"
	"finreview/internal/handler"
	"finreview/internal/middleware"
	"finreview/internal/service"
	"finreview/internal/standardize"
	"finreview/internal/workflow"
)

const testReviewer = "reviewer-7"

func init() {
	gin.SetMode(gin.TestMode)
}

func newSessionHandler(maxUpload int64) (*handler.SessionHandler, *mockReviewService) {
	svc := new(mockReviewService)
	return handler.NewSessionHandler(svc, maxUpload), svc
}

func newContext(method, target string, body *bytes.Buffer, id string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if body == nil {
		c.Request, _ = http.NewRequest(method, target, http.NoBody)
	} else {
		c.Request, _ = http.NewRequest(method, target, body)
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if id != "" {
		c.Params = gin.Params{{Key: "id", Value: id}}
	}
	c.Set(middleware.ContextKeyReviewer, testReviewer)
	return c, w
}

func jsonBody(t *testing.T, v interface{}) *bytes.Buffer {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func multipartContext(t *testing.T, target, id, filename string, content []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, target, body)
	c.Request.Header.Set("Content-Type", mw.FormDataContentType())
	if id != "" {
		c.Params = gin.Params{{Key: "id", Value: id}}
	}
	c.Set(middleware.ContextKeyReviewer, testReviewer)
	return c, w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) handler.APIResponse {
	t.Helper()
	var resp handler.APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sessionView(id uuid.UUID, stage domain.Stage) *service.SessionView {
	return &service.SessionView{Snapshot: workflow.Snapshot{ID: id, Stage: stage, Record: domain.NewFinancialRecord()}}
}

func TestSessionHandler_Create(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Start", mock.Anything, testReviewer).Return(sessionView(id, domain.StageUpload), nil)

	c, w := newContext(http.MethodPost, "/api/v1/sessions", nil, "")
	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	resp := decode(t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, id.String(), resp.Data.(map[string]interface{})["id"])
	svc.AssertExpectations(t)
}

func TestSessionHandler_GetInvalidID(t *testing.T) {
	h, svc := newSessionHandler(0)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/nope", nil, "nope")
	h.Get(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_ID", decode(t, w).Error.Code)
	svc.AssertNotCalled(t, "Get")
}

func TestSessionHandler_GetNotFound(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, domain.ErrSessionNotFound)

	c, w := newContext(http.MethodGet, "/api/v1/sessions/"+id.String(), nil, id.String())
	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode(t, w).Error.Code)
}

func TestSessionHandler_Upload(t *testing.T) {
	h, svc := newSessionHandler(1024)
	id := uuid.New()
	content := []byte("\x89PNG\r\n\x1a\nrest")
	svc.On("Upload", mock.Anything, id, service.UploadInput{
		Filename: "scan.png",
		Data:     content,
		Actor:    testReviewer,
	}).Return(sessionView(id, domain.StageReview), nil)

	c, w := multipartContext(t, "/api/v1/sessions/"+id.String()+"/upload", id.String(), "scan.png", content)
	h.Upload(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSessionHandler_UploadTooLarge(t *testing.T) {
	h, svc := newSessionHandler(8)
	id := uuid.New()

	c, w := multipartContext(t, "/upload", id.String(), "scan.png", bytes.Repeat([]byte{1}, 64))
	h.Upload(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, "FILE_TOO_LARGE", decode(t, w).Error.Code)
	svc.AssertNotCalled(t, "Upload")
}

func TestSessionHandler_UploadMissingFile(t *testing.T) {
	h, _ := newSessionHandler(0)
	id := uuid.New()

	c, w := newContext(http.MethodPost, "/upload", jsonBody(t, map[string]string{}), id.String())
	h.Upload(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MISSING_FILE", decode(t, w).Error.Code)
}

func TestSessionHandler_UploadWrongStage(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Upload", mock.Anything, id, mock.Anything).
		Return(nil, errors.Join(domain.ErrInvalidTransition, errors.New("session is in review")))

	c, w := multipartContext(t, "/upload", id.String(), "scan.png", []byte("data"))
	h.Upload(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_STAGE", decode(t, w).Error.Code)
}

func TestSessionHandler_EditField(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	res := &service.EditResult{
		Validation: &domain.ValidationResult{IsValid: true, Confidence: 1},
		Session:    sessionView(id, domain.StageReview),
	}
	svc.On("EditField", mock.Anything, id, "personal.nric", "S1234567A", testReviewer).Return(res, nil)

	body := jsonBody(t, map[string]string{"path": "personal.nric", "value": "S1234567A"})
	c, w := newContext(http.MethodPut, "/fields", body, id.String())
	h.EditField(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSessionHandler_EditFieldBadPath(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("EditField", mock.Anything, id, "personal.unknown", "x", testReviewer).
		Return(nil, errors.Join(domain.ErrInvalidFieldPath, errors.New("personal.unknown")))

	body := jsonBody(t, map[string]string{"path": "personal.unknown", "value": "x"})
	c, w := newContext(http.MethodPut, "/fields", body, id.String())
	h.EditField(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_FIELD_PATH", decode(t, w).Error.Code)
}

func TestSessionHandler_FieldActionsRequirePath(t *testing.T) {
	h, _ := newSessionHandler(0)
	id := uuid.New()

	actions := map[string]gin.HandlerFunc{
		"edit":        h.EditField,
		"confirm":     h.ConfirmField,
		"accept":      h.AcceptField,
		"standardize": h.StandardizeField,
	}
	for name, action := range actions {
		t.Run(name, func(t *testing.T) {
			c, w := newContext(http.MethodPost, "/fields", jsonBody(t, map[string]string{}), id.String())
			action(c)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "INVALID_REQUEST", decode(t, w).Error.Code)
		})
	}
}

func TestSessionHandler_ConfirmAndAccept(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	path := "applicantIncome.0.occupation"
	svc.On("ConfirmField", mock.Anything, id, path, testReviewer).Return(sessionView(id, domain.StageReview), nil)
	svc.On("AcceptField", mock.Anything, id, path, testReviewer).Return(sessionView(id, domain.StageReview), nil)

	c, w := newContext(http.MethodPost, "/confirm", jsonBody(t, map[string]string{"path": path}), id.String())
	h.ConfirmField(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodPost, "/accept", jsonBody(t, map[string]string{"path": path}), id.String())
	h.AcceptField(c)
	assert.Equal(t, http.StatusOK, w.Code)

	svc.AssertExpectations(t)
}

func TestSessionHandler_StandardizeField(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	path := "householdIncome.0.relationship"
	svc.On("StandardizeField", mock.Anything, id, path, testReviewer).
		Return(&standardize.Result{Original: "my mum", Standardized: "mother", Applied: true}, nil)

	c, w := newContext(http.MethodPost, "/standardize", jsonBody(t, map[string]string{"path": path}), id.String())
	h.StandardizeField(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w).Data.(map[string]interface{})
	assert.Equal(t, "mother", data["standardized"])
}

func TestSessionHandler_ContinueAnyway(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("ContinueAnyway", mock.Anything, id, testReviewer).Return(nil, nil)

	c, w := newContext(http.MethodPost, "/continue", nil, id.String())
	h.ContinueAnyway(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"unresolved":[]}}`, w.Body.String())
}

func TestSessionHandler_SetStatus(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("SetStatus", mock.Anything, id, domain.RecordApproved, "looks fine", testReviewer).
		Return(sessionView(id, domain.StageReview), nil)

	body := jsonBody(t, map[string]string{"status": "approved", "notes": "looks fine"})
	c, w := newContext(http.MethodPut, "/status", body, id.String())
	h.SetStatus(c)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSessionHandler_SetStatusInvalid(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("SetStatus", mock.Anything, id, domain.RecordStatus("archived"), "", testReviewer).
		Return(nil, domain.ErrInvalidStatus)

	c, w := newContext(http.MethodPut, "/status", jsonBody(t, map[string]string{"status": "archived"}), id.String())
	h.SetStatus(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_STATUS", decode(t, w).Error.Code)
}

func TestSessionHandler_AdvanceBlocked(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	blocked := &domain.BlockedError{
		Kind: domain.ErrValidationBlocked,
		Fields: []domain.FieldReason{{
			Path:    "personal.nric",
			Label:   "NRIC",
			Reasons: []string{"NRIC must be in format S1234567A"},
		}},
	}
	svc.On("Advance", mock.Anything, id, testReviewer).Return(nil, blocked)

	c, w := newContext(http.MethodPost, "/advance", nil, id.String())
	h.Advance(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode(t, w)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_BLOCKED", resp.Error.Code)
	require.Len(t, resp.Error.Fields, 1)
	assert.Equal(t, "personal.nric", resp.Error.Fields[0].Path)
}

func TestSessionHandler_AdvanceMandatoryMissing(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Advance", mock.Anything, id, testReviewer).Return(nil, &domain.BlockedError{
		Kind:   domain.ErrMandatoryFieldsMissing,
		Fields: []domain.FieldReason{{Path: "personal.applicantName", Reasons: []string{"required"}}},
	})

	c, w := newContext(http.MethodPost, "/advance", nil, id.String())
	h.Advance(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "MANDATORY_FIELDS_MISSING", decode(t, w).Error.Code)
}

func TestSessionHandler_Export(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Export", mock.Anything, id, "csv").Return(&service.ExportFile{
		Filename:    "Tan_form_2026-03-15.csv",
		ContentType: "text/csv",
		Data:        []byte("section,field,value\n"),
	}, nil)

	c, w := newContext(http.MethodGet, "/export?format=csv", nil, id.String())
	h.Export(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Disposition"), `attachment; filename="Tan_form_2026-03-15.csv"`))
	assert.Equal(t, "section,field,value\n", w.Body.String())
}

func TestSessionHandler_ExportWrongStage(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Export", mock.Anything, id, "").Return(nil, domain.ErrInvalidTransition)

	c, w := newContext(http.MethodGet, "/export", nil, id.String())
	h.Export(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestSessionHandler_ValidateAndReset(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Validate", mock.Anything, id).Return(nil, domain.ErrInvalidTransition)
	svc.On("Reset", mock.Anything, id, testReviewer).Return(sessionView(id, domain.StageUpload), nil)

	c, w := newContext(http.MethodPost, "/validate", nil, id.String())
	h.Validate(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newContext(http.MethodPost, "/reset", nil, id.String())
	h.Reset(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "upload", decode(t, w).Data.(map[string]interface{})["stage"])
}

func TestSessionHandler_InternalErrorIsMasked(t *testing.T) {
	h, svc := newSessionHandler(0)
	id := uuid.New()
	svc.On("Get", mock.Anything, id).Return(nil, errors.New("redis: connection refused"))

	c, w := newContext(http.MethodGet, "/", nil, id.String())
	h.Get(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "INTERNAL_ERROR", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "redis")
}
