package handlers

import (
	"net/http"
	"time"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/repository"
	"schoolbox-be/internal/services"
	"schoolbox-be/internal/utils"

	"github.com/gin-gonic/gin"
)

// PipelineHandler exposes manual triggers for the stages the scheduler
// normally drives.
type PipelineHandler struct {
	pipeline  *services.Pipeline
	emailRepo *repository.EmailRepository
	mailer    services.Mailer
}

func NewPipelineHandler(pipeline *services.Pipeline, emailRepo *repository.EmailRepository, mailer services.Mailer) *PipelineHandler {
	return &PipelineHandler{
		pipeline:  pipeline,
		emailRepo: emailRepo,
		mailer:    mailer,
	}
}

// RespondRequest is the payload for a manual reply.
type RespondRequest struct {
	Text string `json:"text" binding:"required"`
}

// RunNow godoc
// @Summary Run one batch pass immediately
// @Tags pipeline
// @Security ApiKeyAuth
// @Produce json
// @Success 200 {object} services.BatchResult
// @Failure 502 {object} models.ErrorResponse
// @Router /pipeline/run [post]
func (h *PipelineHandler) RunNow(c *gin.Context) {
	result, err := h.pipeline.RunBatch(c.Request.Context())
	if err != nil {
		c.JSON(statusForKind(services.ErrorKind(err)), models.ErrorResponse{
			Error:   services.ErrorKind(err),
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessEmail godoc
// @Summary Re-run classification for one stored email
// @Tags pipeline
// @Security ApiKeyAuth
// @Produce json
// @Param emailId path string true "Provider message id"
// @Success 200 {object} map[string]string
// @Failure 502 {object} models.ErrorResponse
// @Router /pipeline/emails/{emailId}/process [post]
func (h *PipelineHandler) ProcessEmail(c *gin.Context) {
	emailID := c.Param("emailId")

	if err := h.pipeline.ProcessStored(c.Request.Context(), emailID); err != nil {
		c.JSON(statusForKind(services.ErrorKind(err)), models.ErrorResponse{
			Error:   services.ErrorKind(err),
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "processed", "emailId": emailID})
}

// Respond godoc
// @Summary Send a manual reply to an email
// @Tags pipeline
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param emailId path string true "Provider message id"
// @Param payload body RespondRequest true "Reply text"
// @Success 200 {object} models.Email
// @Failure 404 {object} models.ErrorResponse
// @Router /emails/{emailId}/respond [post]
func (h *PipelineHandler) Respond(c *gin.Context) {
	emailID := c.Param("emailId")

	var req RespondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	ctx := c.Request.Context()

	email, err := h.emailRepo.FindByMessageID(ctx, emailID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to load email",
		})
		return
	}
	if email == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "email_not_found",
			Message: "Email not found",
		})
		return
	}

	subject := email.Subject
	if subject != "" && !utils.HasReplyPrefix(subject) {
		subject = "Re: " + subject
	}

	if _, err := h.mailer.Send(ctx, &services.OutboundEmail{
		To:       email.From.Email,
		Subject:  subject,
		Text:     req.Text,
		ThreadID: email.ThreadID,
	}); err != nil {
		c.JSON(statusForKind(services.ErrorKind(err)), models.ErrorResponse{
			Error:   services.ErrorKind(err),
			Message: err.Error(),
		})
		return
	}

	userID, _ := c.Get("userID")
	respondedBy, _ := userID.(string)
	now := time.Now()

	info := models.ResponseInfo{
		Status:       models.ResponseSent,
		ResponseText: req.Text,
		RespondedAt:  &now,
		RespondedBy:  respondedBy,
	}
	if err := h.emailRepo.SetResponse(ctx, emailID, info); err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Reply sent but status could not be saved",
		})
		return
	}

	email.Response = info
	c.JSON(http.StatusOK, email)
}

// statusForKind maps the error taxonomy onto HTTP statuses.
func statusForKind(kind string) int {
	switch kind {
	case services.KindProvider, services.KindClassification:
		return http.StatusBadGateway
	case services.KindPersistence:
		return http.StatusInternalServerError
	case services.KindAction:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
