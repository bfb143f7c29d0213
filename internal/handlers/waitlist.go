package handlers

import (
	"context"
	"net/http"
	"time"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/repository"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
)

type WaitlistHandler struct {
	waitlistRepo *repository.WaitlistRepository
}

func NewWaitlistHandler(waitlistRepo *repository.WaitlistRepository) *WaitlistHandler {
	return &WaitlistHandler{
		waitlistRepo: waitlistRepo,
	}
}

// UpdateStatusRequest is the payload for a waitlist status change.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// GetWaitlist godoc
// @Summary List waitlist entries ordered by position
// @Tags waitlist
// @Security ApiKeyAuth
// @Produce json
// @Param status query string false "Filter by status"
// @Param parentEmail query string false "Filter by parent email"
// @Success 200 {object} models.WaitlistListResponse
// @Router /waitlist [get]
func (h *WaitlistHandler) GetWaitlist(c *gin.Context) {
	var status models.WaitlistStatus
	if q := c.Query("status"); q != "" {
		if !models.ValidWaitlistStatus(q) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error:   "validation_error",
				Message: "Unknown waitlist status: " + q,
			})
			return
		}
		status = models.WaitlistStatus(q)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var entries []*models.WaitlistEntry
	var err error
	if parentEmail := c.Query("parentEmail"); parentEmail != "" {
		entries, err = h.waitlistRepo.FindByParentEmail(ctx, parentEmail)
	} else {
		entries, err = h.waitlistRepo.List(ctx, status)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to load waitlist",
		})
		return
	}

	c.JSON(http.StatusOK, models.WaitlistListResponse{
		Entries: entries,
		Total:   len(entries),
	})
}

// UpdateStatus godoc
// @Summary Change a waitlist entry's status
// @Tags waitlist
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param id path string true "Waitlist entry id"
// @Param payload body UpdateStatusRequest true "New status"
// @Success 200 {object} models.WaitlistEntry
// @Failure 404 {object} models.ErrorResponse
// @Router /waitlist/{id}/status [patch]
func (h *WaitlistHandler) UpdateStatus(c *gin.Context) {
	id := c.Param("id")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}
	if !models.ValidWaitlistStatus(req.Status) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: "Unknown waitlist status: " + req.Status,
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := h.waitlistRepo.UpdateStatus(ctx, id, models.WaitlistStatus(req.Status)); err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "entry_not_found",
				Message: "Waitlist entry not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to update waitlist entry",
		})
		return
	}

	entry, err := h.waitlistRepo.GetByID(ctx, id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to load updated entry",
		})
		return
	}

	c.JSON(http.StatusOK, entry)
}
