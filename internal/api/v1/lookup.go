package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/api/dto"
	"github.com/parcelbase/parcelbase/internal/config"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/types"
)

// LookupHandler resolves codes typed or pasted outside a scan session
type LookupHandler struct {
	service service.LookupService
	origin  string
	log     *logger.Logger
}

func NewLookupHandler(cfg *config.Configuration, service service.LookupService, log *logger.Logger) *LookupHandler {
	return &LookupHandler{
		service: service,
		origin:  cfg.Tracking.Origin,
		log:     log,
	}
}

// @Summary Resolve a scanned code
// @Description Accepts a short code, a package id, a tracking URL or a JSON label payload
// @Tags Lookup
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.LookupRequest true "Raw decoded text"
// @Success 200 {object} dto.LookupResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Failure 503 {object} middleware.ErrorResponse
// @Router /lookup [post]
func (h *LookupHandler) Lookup(c *gin.Context) {
	var req dto.LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}
	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	code, res, err := h.service.Resolve(c.Request.Context(), req.Raw)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, dto.LookupResponse{
		Code:    code,
		Package: dto.NewPackageResponse(res.Package, h.origin),
		History: res.History,
	})
}

// @Summary List package statuses
// @Description The status vocabulary and the allowed transitions between statuses
// @Tags Lookup
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StatusesResponse
// @Router /statuses [get]
func (h *LookupHandler) ListStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, dto.StatusesResponse{
		Statuses:    types.PackageStatuses,
		Transitions: types.StatusTransitions(),
	})
}
