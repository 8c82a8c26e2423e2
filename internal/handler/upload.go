package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"finreview/internal/domain"
)

// readUpload reads the multipart "file" field, refusing bodies larger than
// maxBytes. Returns false if the response has already been written.
func readUpload(c *gin.Context, maxBytes int64) (data []byte, filename string, ok bool) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", "file field is required")
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if maxBytes > 0 && header.Size > maxBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return nil, "", false
	}
	reader := io.Reader(file)
	if maxBytes > 0 {
		reader = io.LimitReader(file, maxBytes+1)
	}
	data, err = io.ReadAll(reader)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_FILE", "could not read uploaded file")
		return nil, "", false
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		HandleError(c, domain.ErrFileTooLarge)
		return nil, "", false
	}
	return data, header.Filename, true
}
