package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/feeflow/feeflow-api/internal/service"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
	"github.com/feeflow/feeflow-api/pkg/response"
)

// DashboardHandler exposes the dashboard summary endpoint.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Teacher dashboard summary
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, cached, err := h.dashboard.Summary(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cached": cached})
}
