package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	pkgerrors "github.com/yungbote/dicomweb-backend/internal/pkg/errors"
	"github.com/yungbote/dicomweb-backend/internal/services"
)

type RetrieveHandler struct {
	log             *logger.Logger
	retrieveService services.RetrieveService
	renderedService services.RenderedService
}

func NewRetrieveHandler(log *logger.Logger, rsvc services.RetrieveService, rendered services.RenderedService) *RetrieveHandler {
	return &RetrieveHandler{
		log:             log.With("handler", "RetrieveHandler"),
		retrieveService: rsvc,
		renderedService: rendered,
	}
}

// GET /studies/:study
// GET /studies/:study/series/:series
// GET /studies/:study/series/:series/instances/:instance
func (h *RetrieveHandler) RetrieveInstances(c *gin.Context) {
	body, contentType, err := h.retrieveService.Instances(
		c.Request.Context(), c.Param("study"), c.Param("series"), c.Param("instance"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.streamBody(c, contentType, body)
}

// GET /studies/:study/metadata
// GET /studies/:study/series/:series/metadata
// GET /studies/:study/series/:series/instances/:instance/metadata
func (h *RetrieveHandler) RetrieveMetadata(c *gin.Context) {
	objects, err := h.retrieveService.Metadata(
		c.Request.Context(), c.Param("study"), c.Param("series"), c.Param("instance"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDICOMJSON(c, h.log, objects)
}

// GET /studies/:study/series/:series/instances/:instance/frames/:frames
func (h *RetrieveHandler) RetrieveFrames(c *gin.Context) {
	index, err := parseFrameNumber(c.Param("frames"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	body, contentType, err := h.retrieveService.PixelData(
		c.Request.Context(), c.Param("study"), c.Param("series"), c.Param("instance"), index)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	h.streamBody(c, contentType, body)
}

// GET .../rendered at study, series, and instance level
func (h *RetrieveHandler) RetrieveRendered(c *gin.Context) {
	data, err := h.renderedService.Rendered(
		c.Request.Context(), c.Param("study"), c.Param("series"), c.Param("instance"), nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

// GET .../thumbnail at study, series, and instance level
func (h *RetrieveHandler) RetrieveThumbnail(c *gin.Context) {
	data, err := h.renderedService.Thumbnail(
		c.Request.Context(), c.Param("study"), c.Param("series"), c.Param("instance"), nil)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *RetrieveHandler) streamBody(c *gin.Context, contentType string, body io.Reader) {
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		// Headers are gone; all that is left is logging the broken stream.
		h.log.Warn("Response stream aborted", "error", err)
	}
}

// parseFrameNumber reads the one-based frame number from the path and
// converts it to the zero-based index the extraction layer uses.
func parseFrameNumber(raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	index := n - 1
	return &index, nil
}
