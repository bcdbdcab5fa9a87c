// Package handlers adapts the HTTP surface to the services: parameter
// extraction, content negotiation, and the error-to-status mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dicomweb-backend/internal/frames"
	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/multipart"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
)

// ContentTypeDICOMJSON is the media type of every JSON response body on the
// search and metadata routes.
const ContentTypeDICOMJSON = "application/dicom+json"

// respondError maps a service error to its status code. Anything unexpected
// is a 500 with an opaque body; the detail goes to the log only.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	switch {
	case errors.Is(err, pkgerrors.ErrNotFound), errors.Is(err, frames.ErrFrameNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, multipart.ErrInvalidBoundary), errors.Is(err, multipart.ErrNotMultipartRelated),
		errors.Is(err, pkgerrors.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, multipart.ErrEmptyMessage), errors.Is(err, multipart.ErrStartNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "unprocessable message"})
	default:
		log.Error("Request failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// respondDICOMJSON writes v as an application/dicom+json body.
func respondDICOMJSON(c *gin.Context, log *logger.Logger, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error("Response serialization failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, ContentTypeDICOMJSON, body)
}

// queryParams flattens the request query to first values; multi-valued
// attributes carry their values inside one parameter.
func queryParams(c *gin.Context) map[string]string {
	params := map[string]string{}
	for key, values := range c.Request.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params
}
