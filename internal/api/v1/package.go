package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parcelbase/parcelbase/internal/api/dto"
	ierr "github.com/parcelbase/parcelbase/internal/errors"
	"github.com/parcelbase/parcelbase/internal/logger"
	"github.com/parcelbase/parcelbase/internal/service"
	"github.com/parcelbase/parcelbase/internal/types"
)

type PackageHandler struct {
	service service.PackageService
	log     *logger.Logger
}

func NewPackageHandler(service service.PackageService, log *logger.Logger) *PackageHandler {
	return &PackageHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create a package
// @Description Create a package, assign its short code and take its contents out of stock
// @Tags Packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param package body dto.CreatePackageRequest true "Package"
// @Success 201 {object} dto.PackageDetailResponse
// @Failure 400 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /packages [post]
func (h *PackageHandler) CreatePackage(c *gin.Context) {
	var req dto.CreatePackageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreatePackage(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary List packages
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param filter query types.PackageFilter false "Filter"
// @Success 200 {object} dto.ListPackagesResponse
// @Router /packages [get]
func (h *PackageHandler) ListPackages(c *gin.Context) {
	filter := types.NewPackageFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListPackages(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a package
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 200 {object} dto.PackageDetailResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /packages/{id} [get]
func (h *PackageHandler) GetPackage(c *gin.Context) {
	resp, err := h.service.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a package by short code
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param code path string true "Short code"
// @Success 200 {object} dto.PackageDetailResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /packages/code/{code} [get]
func (h *PackageHandler) GetPackageByShortCode(c *gin.Context) {
	resp, err := h.service.GetPackageByShortCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List status history of a package
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 200 {object} dto.ListHistoryResponse
// @Router /packages/{id}/history [get]
func (h *PackageHandler) ListHistory(c *gin.Context) {
	filter := types.NewHistoryFilter(c.Param("id"), 0)
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListHistory(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary List scans of a package
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 200 {object} dto.ListScansResponse
// @Router /packages/{id}/scans [get]
func (h *PackageHandler) ListScans(c *gin.Context) {
	filter := types.NewHistoryFilter(c.Param("id"), 0)
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListScans(c.Request.Context(), c.Param("id"), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Change the status of a package
// @Description Manual status change. The request carries the status the operator saw; a package moved by someone else in the meantime yields 409.
// @Tags Packages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Param request body dto.ChangeStatusRequest true "Status change"
// @Success 200 {object} dto.ChangeStatusResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /packages/{id}/status [post]
func (h *PackageHandler) ChangeStatus(c *gin.Context) {
	var req dto.ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ChangeStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get label data of a package
// @Tags Packages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 200 {object} dto.LabelResponse
// @Router /packages/{id}/label [get]
func (h *PackageHandler) GetLabel(c *gin.Context) {
	resp, err := h.service.GetLabel(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a package
// @Description Delete a package with its history and scans. Admin only.
// @Tags Packages
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 204
// @Failure 403 {object} middleware.ErrorResponse
// @Router /packages/{id} [delete]
func (h *PackageHandler) DeletePackage(c *gin.Context) {
	if err := h.service.DeletePackage(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
