package handler

import (
	"net/http"

	"dukapos/internal/apierror"
	"dukapos/internal/dto"
	"dukapos/internal/service"

	"github.com/gin-gonic/gin"
)

type SalesHandler struct{ svc service.SalesService }

func NewSalesHandler(svc service.SalesService) *SalesHandler { return &SalesHandler{svc: svc} }

// Report godoc
// @Summary      Aggregated sales report
// @Description  Summary, per-product and per-branch breakdowns plus top products, filterable by date range, branch and product. Admin only.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        start_date query string false "YYYY-MM-DD"
// @Param        end_date   query string false "YYYY-MM-DD"
// @Param        branch_id  query string false "Branch UUID"
// @Param        product_id query string false "Product UUID"
// @Success      200 {object} dto.SalesReportResponse
// @Router       /api/sales/reports [get]
func (h *SalesHandler) Report(c *gin.Context) {
	var filter dto.ReportFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to build sales report"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Detailed godoc
// @Summary      Paginated list of individual sales
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Param        start_date query string false "YYYY-MM-DD"
// @Param        end_date   query string false "YYYY-MM-DD"
// @Param        branch_id  query string false "Branch UUID"
// @Param        page       query int    false "Page (default 1)"
// @Param        limit      query int    false "Rows per page (default 50)"
// @Success      200 {object} dto.DetailedSalesResponse
// @Router       /api/sales/detailed [get]
func (h *SalesHandler) Detailed(c *gin.Context) {
	var filter dto.ReportFilter
	if !bindQueryAndValidate(c, &filter) {
		return
	}
	resp, err := h.svc.Detailed(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to list sales"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Analytics godoc
// @Summary      Sales analytics
// @Description  Average transaction value and the weekday sales distribution over the last 30 days. Admin only.
// @Tags         sales
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.SalesAnalyticsResponse
// @Router       /api/sales/analytics [get]
func (h *SalesHandler) Analytics(c *gin.Context) {
	resp, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Failed to build sales analytics"))
		return
	}
	c.JSON(http.StatusOK, resp)
}
