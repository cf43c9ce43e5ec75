package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/scanner"
)

type HealthHandler struct {
	sessions *scanner.Manager
	logger   *logger.Logger
}

func NewHealthHandler(
	sessions *scanner.Manager,
	logger *logger.Logger,
) *HealthHandler {
	return &HealthHandler{
		sessions: sessions,
		logger:   logger,
	}
}

// @Summary Health check
// @Description Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"active_sessions": h.sessions.Count(),
	})
}
