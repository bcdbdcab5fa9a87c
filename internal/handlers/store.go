package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/dicomweb-backend/internal/logger"
	"github.com/yungbote/dicomweb-backend/internal/services"
)

type StoreHandler struct {
	log          *logger.Logger
	storeService services.StoreService
}

func NewStoreHandler(log *logger.Logger, svc services.StoreService) *StoreHandler {
	return &StoreHandler{
		log:          log.With("handler", "StoreHandler"),
		storeService: svc,
	}
}

// POST /studies
// POST /studies/:study
func (h *StoreHandler) StoreInstances(c *gin.Context) {
	result, err := h.storeService.StoreInstances(
		c.Request.Context(), c.GetHeader("Content-Type"), c.Request.Body, c.Param("study"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
