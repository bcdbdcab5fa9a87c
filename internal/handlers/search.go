package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/services"
)

type SearchHandler struct {
	log           *logger.Logger
	searchService services.SearchService
}

func NewSearchHandler(log *logger.Logger, svc services.SearchService) *SearchHandler {
	return &SearchHandler{
		log:           log.With("handler", "SearchHandler"),
		searchService: svc,
	}
}

// GET /studies
func (h *SearchHandler) SearchStudies(c *gin.Context) {
	objects, err := h.searchService.Studies(c.Request.Context(), queryParams(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDICOMJSON(c, h.log, objects)
}

// GET /series
// GET /studies/:study/series
func (h *SearchHandler) SearchSeries(c *gin.Context) {
	objects, err := h.searchService.Series(c.Request.Context(), c.Param("study"), queryParams(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDICOMJSON(c, h.log, objects)
}

// GET /instances
// GET /studies/:study/instances
// GET /studies/:study/series/:series/instances
func (h *SearchHandler) SearchInstances(c *gin.Context) {
	objects, err := h.searchService.Instances(c.Request.Context(), c.Param("study"), c.Param("series"), queryParams(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	respondDICOMJSON(c, h.log, objects)
}
