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

type InventoryHandler struct {
	service service.InventoryService
	log     *logger.Logger
}

func NewInventoryHandler(service service.InventoryService, log *logger.Logger) *InventoryHandler {
	return &InventoryHandler{
		service: service,
		log:     log,
	}
}

// @Summary Create an inventory item
// @Tags Inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param item body dto.CreateInventoryItemRequest true "Item"
// @Success 201 {object} dto.InventoryItemResponse
// @Failure 403 {object} middleware.ErrorResponse
// @Failure 409 {object} middleware.ErrorResponse
// @Router /inventory [post]
func (h *InventoryHandler) CreateItem(c *gin.Context) {
	var req dto.CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.CreateItem(c.Request.Context(), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// @Summary List inventory items
// @Tags Inventory
// @Produce json
// @Security BearerAuth
// @Param filter query types.InventoryItemFilter false "Filter"
// @Success 200 {object} dto.ListInventoryItemsResponse
// @Router /inventory [get]
func (h *InventoryHandler) ListItems(c *gin.Context) {
	filter := types.NewInventoryItemFilter()
	if err := c.ShouldBindQuery(filter); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid filter parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListItems(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get an inventory item
// @Description Get an item with its recent stock movements
// @Tags Inventory
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Success 200 {object} dto.InventoryItemResponse
// @Failure 404 {object} middleware.ErrorResponse
// @Router /inventory/{id} [get]
func (h *InventoryHandler) GetItem(c *gin.Context) {
	resp, err := h.service.GetItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Adjust stock
// @Tags Inventory
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Item ID"
// @Param request body dto.AdjustInventoryRequest true "Adjustment"
// @Success 200 {object} dto.InventoryItemResponse
// @Failure 422 {object} middleware.ErrorResponse
// @Router /inventory/{id}/adjust [post]
func (h *InventoryHandler) Adjust(c *gin.Context) {
	var req dto.AdjustInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.Adjust(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
