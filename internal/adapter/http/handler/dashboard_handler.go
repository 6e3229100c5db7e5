package handler

import (
	"math"
	"strconv"

	"age-verification-gateway/internal/adapter/http/dto"
	"age-verification-gateway/internal/core/domain"
	"age-verification-gateway/internal/core/ports"
	"age-verification-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles dashboard & verification list endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// GetStats handles GET /api/v1/dashboard/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	period := c.DefaultQuery("period", "all")
	stats, err := h.reportingSvc.GetDashboardStats(c.Request.Context(), companyID, period)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.DashboardStatsResponse{
		Total:      stats.Total,
		Pending:    stats.Pending,
		Successful: stats.Successful,
		Failed:     stats.Failed,
		Refunded:   stats.Refunded,
		Spent:      stats.Spent,
	})
}

// ListVerifications handles GET /api/v1/verifications.
func (h *DashboardHandler) ListVerifications(c *gin.Context) {
	companyID, ok := companyFromContext(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.VerificationListParams{
		CompanyID: companyID,
		Page:      page,
		PageSize:  pageSize,
	}

	if s := c.Query("status"); s != "" {
		status := domain.VerificationStatus(s)
		params.Status = &status
	}
	if m := c.Query("method"); m != "" {
		method := domain.VerificationMethod(m)
		params.Method = &method
	}
	if raw := c.Query("shopId"); raw != "" {
		shopID, ok := uuidParam(c, "shopId", raw)
		if !ok {
			return
		}
		params.ShopID = &shopID
	}

	items, total, err := h.reportingSvc.ListVerifications(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.VerificationResponse, 0, len(items))
	for i := range items {
		out = append(out, toVerificationResponse(&items[i]))
	}

	response.OK(c, dto.VerificationListResponse{
		Items:      out,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	})
}
