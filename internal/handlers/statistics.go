package handlers

import (
	"context"
	"net/http"
	"time"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/repository"

	"github.com/gin-gonic/gin"
)

type StatisticsHandler struct {
	statsRepo    *repository.StatisticsRepository
	waitlistRepo *repository.WaitlistRepository
}

func NewStatisticsHandler(statsRepo *repository.StatisticsRepository, waitlistRepo *repository.WaitlistRepository) *StatisticsHandler {
	return &StatisticsHandler{
		statsRepo:    statsRepo,
		waitlistRepo: waitlistRepo,
	}
}

// GetStatistics godoc
// @Summary Inbox dashboard statistics
// @Tags statistics
// @Security ApiKeyAuth
// @Produce json
// @Param period query string false "7d, 30d or 90d"
// @Success 200 {object} models.StatisticsResponse
// @Router /statistics [get]
func (h *StatisticsHandler) GetStatistics(c *gin.Context) {
	period := c.DefaultQuery("period", "30d")
	days := 30
	switch period {
	case "7d":
		days = 7
	case "90d":
		days = 90
	default:
		period = "30d"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	categoryStats, err := h.statsRepo.GetEmailsByCategory(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	priorityStats, err := h.statsRepo.GetEmailsByPriority(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	trend, err := h.statsRepo.GetEmailTrend(ctx, days)
	if err != nil {
		h.fail(c, err)
		return
	}

	topSenders, err := h.statsRepo.GetTopSenders(ctx, 10)
	if err != nil {
		h.fail(c, err)
		return
	}

	total, unprocessed, requiresAction, err := h.statsRepo.GetCounts(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	waitlistActive, err := h.waitlistRepo.CountActive(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, models.StatisticsResponse{
		CategoryStats:    categoryStats,
		PriorityStats:    priorityStats,
		EmailTrend:       trend,
		TopSenders:       topSenders,
		TotalEmails:      total,
		UnprocessedCount: unprocessed,
		RequiresAction:   requiresAction,
		WaitlistActive:   waitlistActive,
		Period:           period,
	})
}

func (h *StatisticsHandler) fail(c *gin.Context, err error) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{
		Error:   "server_error",
		Message: err.Error(),
	})
}
