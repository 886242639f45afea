package handler

import (
	"net/http"
	"strconv"

	"dukapos/internal/apierror"
	"dukapos/internal/service"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct{ svc service.DashboardService }

func NewDashboardHandler(svc service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// Metrics godoc
// @Summary      Dashboard metrics
// @Description  Total revenue and sales, revenue by product, sales by branch, low-stock alerts. Admin only.
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.MetricsResponse
// @Router       /api/dashboard/metrics [get]
func (h *DashboardHandler) Metrics(c *gin.Context) {
	resp, err := h.svc.Metrics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to compute metrics"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Timeline godoc
// @Summary      Daily sales timeline (30 days)
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200 {array} dto.TimelinePoint
// @Router       /api/dashboard/sales-timeline [get]
func (h *DashboardHandler) Timeline(c *gin.Context) {
	resp, err := h.svc.Timeline(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to compute timeline"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RecentTransactions godoc
// @Summary      Most recent sales
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "Max rows (default 10)"
// @Success      200 {array} dto.RecentTransaction
// @Router       /api/dashboard/recent-transactions [get]
func (h *DashboardHandler) RecentTransactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	resp, err := h.svc.RecentTransactions(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list transactions"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
