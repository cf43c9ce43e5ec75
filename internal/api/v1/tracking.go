package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/service"
)

type TrackingHandler struct {
	service service.TrackingService
	log     *logger.Logger
}

func NewTrackingHandler(service service.TrackingService, log *logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		log:     log,
	}
}

// @Summary Track a package
// @Description Public status page data for the short code printed on a label
// @Tags Tracking
// @Produce json
// @Param code path string true "Short code"
// @Success 200 {object} dto.TrackingResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /track/{code} [get]
func (h *TrackingHandler) Track(c *gin.Context) {
	resp, err := h.service.Track(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
