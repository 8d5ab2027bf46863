package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bams-platform/bams-api/internal/dto"
	"github.com/bams-platform/bams-api/pkg/response"
)

type dashboardOverviewService interface {
	Overview(ctx context.Context) (*dto.DashboardOverviewResponse, bool, error)
}

// DashboardHandler serves the aggregated overview endpoint.
type DashboardHandler struct {
	service dashboardOverviewService
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(service dashboardOverviewService) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// Overview returns the dashboard aggregate.
func (h *DashboardHandler) Overview(c *gin.Context) {
	overview, cacheHit, err := h.service.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, overview, nil, map[string]interface{}{"cache_hit": cacheHit})
}
