package api

import (
	"context"
	"net/http"

	"pos-service/internal/models"

	"github.com/gin-gonic/gin"
)

// DashboardService is the reporting surface the handlers use
type DashboardService interface {
	Stats(ctx context.Context) (*models.DashboardStats, error)
	Analytics(ctx context.Context) (*models.Analytics, error)
}

func (h *Handler) dashboardStats(c *gin.Context) {
	stats, err := h.Dashboard.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) dashboardAnalytics(c *gin.Context) {
	a, err := h.Dashboard.Analytics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
