package handler

import (
	"errors"
	"net/http"
	"strconv"

	"dukapos/internal/apierror"
	"dukapos/internal/dto"
	"dukapos/internal/middleware"
	"dukapos/internal/service"

	"github.com/gin-gonic/gin"
)

type InventoryHandler struct{ svc service.InventoryService }

func NewInventoryHandler(svc service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// List godoc
// @Summary      List inventory
// @Description  Per-branch stock levels, optionally filtered by branch or low-stock flag. Admin only.
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        branch_id query string false "Branch UUID"
// @Param        low_stock query bool   false "Only rows at or below threshold"
// @Success      200 {array} dto.InventoryRow
// @Router       /api/inventory [get]
func (h *InventoryHandler) List(c *gin.Context) {
	var filter dto.InventoryFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.ListInventory(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list inventory"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LowStock godoc
// @Summary      Low stock report
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.LowStockRow
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *gin.Context) {
	resp, err := h.svc.ListLowStock(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to compute low stock"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Branches godoc
// @Summary      List branches
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.BranchResponse
// @Router       /api/inventory/branches [get]
func (h *InventoryHandler) Branches(c *gin.Context) {
	resp, err := h.svc.ListBranches(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list branches"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Products godoc
// @Summary      List products
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.ProductResponse
// @Router       /api/inventory/products [get]
func (h *InventoryHandler) Products(c *gin.Context) {
	resp, err := h.svc.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list products"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Restock godoc
// @Summary      Transfer stock from HQ to a branch
// @Description  Atomic: every line must be satisfiable from HQ stock or the whole transfer is rejected.
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.RestockRequest true "Target branch and product lines"
// @Success      200 {object} dto.RestockResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/inventory/restock [post]
func (h *InventoryHandler) Restock(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Authentication required"))
		return
	}
	var req dto.RestockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Restock(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, service.ErrBranchNotFound) || errors.Is(err, service.ErrHQNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RestockHQ godoc
// @Summary      Record a supplier delivery into HQ
// @Tags         inventory
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.HqRestockRequest true "Product lines and supplier details"
// @Success      200 {object} dto.HqRestockResponse
// @Failure      400 {object} apierror.APIError
// @Router       /api/inventory/restockhq [post]
func (h *InventoryHandler) RestockHQ(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Authentication required"))
		return
	}
	var req dto.HqRestockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RestockHQ(c.Request.Context(), userID, req)
	if err != nil {
		if errors.Is(err, service.ErrHQNotFound) {
			c.JSON(http.StatusNotFound, apierror.New(err.Error()))
			return
		}
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RestockLogs godoc
// @Summary      Recent restock history
// @Tags         inventory
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max rows (default 50)"
// @Success      200 {array} dto.RestockLogRow
// @Router       /api/inventory/restocks [get]
func (h *InventoryHandler) RestockLogs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	resp, err := h.svc.ListRestockLogs(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list restock logs"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
