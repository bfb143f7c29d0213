package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"schoolbox-be/internal/models"
	"schoolbox-be/internal/repository"
	"schoolbox-be/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sahilm/fuzzy"
	"go.mongodb.org/mongo-driver/mongo"
)

type EmailHandler struct {
	emailRepo *repository.EmailRepository
}

func NewEmailHandler(emailRepo *repository.EmailRepository) *EmailHandler {
	return &EmailHandler{
		emailRepo: emailRepo,
	}
}

// SearchRequest is the payload for fuzzy email search.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit"`
}

// SearchResult pairs an email with its match score.
type SearchResult struct {
	Email *models.Email `json:"email"`
	Score int           `json:"score"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
	Query   string         `json:"query"`
	Total   int            `json:"total"`
}

// EscalateRequest carries the reason recorded with a manual escalation.
type EscalateRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// GetEmails godoc
// @Summary List ingested emails
// @Tags emails
// @Security ApiKeyAuth
// @Produce json
// @Param page query int false "Page"
// @Param limit query int false "Per page"
// @Param category query string false "Filter by category"
// @Param processed query bool false "Filter by processed flag"
// @Success 200 {object} models.EmailListResponse
// @Router /emails [get]
func (h *EmailHandler) GetEmails(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	var category models.Category
	if q := c.Query("category"); q != "" {
		category = models.NormalizeCategory(q)
	}

	var processed *bool
	if q := c.Query("processed"); q != "" {
		v := q == "true"
		processed = &v
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emails, total, err := h.emailRepo.List(ctx, category, processed, page, perPage)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to load emails",
		})
		return
	}

	c.JSON(http.StatusOK, models.EmailListResponse{
		Emails:      emails,
		Total:       total,
		Page:        page,
		PerPage:     perPage,
		HasNextPage: page*perPage < total,
	})
}

// GetEmailDetail godoc
// @Summary Get one email by provider message id
// @Tags emails
// @Security ApiKeyAuth
// @Produce json
// @Param emailId path string true "Provider message id"
// @Success 200 {object} models.Email
// @Failure 404 {object} models.ErrorResponse
// @Router /emails/{emailId} [get]
func (h *EmailHandler) GetEmailDetail(c *gin.Context) {
	emailID := c.Param("emailId")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

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

	c.JSON(http.StatusOK, email)
}

// Search godoc
// @Summary Fuzzy search over recent email subjects and senders
// @Tags emails
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param payload body SearchRequest true "Search query"
// @Success 200 {object} SearchResponse
// @Router /emails/search [post]
func (h *EmailHandler) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	emails, err := h.emailRepo.ListRecentSubjects(ctx, 500)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to load emails",
		})
		return
	}

	// Accent-folded haystack so "Jose" finds "José".
	haystack := make([]string, len(emails))
	for i, e := range emails {
		haystack[i] = utils.FoldAccents(e.Subject + " " + e.From.Name + " " + e.From.Email)
	}

	matches := fuzzy.Find(utils.FoldAccents(req.Query), haystack)

	results := make([]SearchResult, 0, limit)
	for _, m := range matches {
		results = append(results, SearchResult{
			Email: emails[m.Index],
			Score: m.Score,
		})
		if len(results) >= limit {
			break
		}
	}

	c.JSON(http.StatusOK, SearchResponse{
		Results: results,
		Query:   req.Query,
		Total:   len(matches),
	})
}

// Escalate godoc
// @Summary Escalate an email's priority one step
// @Tags emails
// @Security ApiKeyAuth
// @Accept json
// @Produce json
// @Param emailId path string true "Provider message id"
// @Param payload body EscalateRequest true "Escalation reason"
// @Success 200 {object} models.Email
// @Failure 404 {object} models.ErrorResponse
// @Router /emails/{emailId}/escalate [post]
func (h *EmailHandler) Escalate(c *gin.Context) {
	emailID := c.Param("emailId")

	var req EscalateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	email, err := h.emailRepo.Escalate(ctx, emailID, req.Reason)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, models.ErrorResponse{
				Error:   "email_not_found",
				Message: "Email not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "server_error",
			Message: "Failed to escalate email",
		})
		return
	}

	c.JSON(http.StatusOK, email)
}
