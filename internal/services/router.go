package services

import (
	"context"
	"time"

	"schoolbox-be/internal/metrics"
	"schoolbox-be/internal/models"
	"schoolbox-be/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Label names the router applies on the provider side. Category labels live
// under one parent so they group in the Gmail sidebar.
const labelPrefix = "schoolbox/"

// ActionRouter performs the category- and priority-driven side effects for
// a classified email. Every effect is isolated: one failure is recorded on
// the email and the remaining effects still run. Outward provider and
// mailer calls carry the configured timeout; the scheduler context has no
// deadline of its own.
type ActionRouter struct {
	emails   EmailStore
	waitlist WaitlistStore
	inbox    Inbox
	mailer   Mailer
	timeout  time.Duration
	logger   *zap.Logger
}

func NewActionRouter(emails EmailStore, waitlist WaitlistStore, inbox Inbox, mailer Mailer, timeout time.Duration, logger *zap.Logger) *ActionRouter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ActionRouter{
		emails:   emails,
		waitlist: waitlist,
		inbox:    inbox,
		mailer:   mailer,
		timeout:  timeout,
		logger:   logger,
	}
}

// Route runs all side effects for one processed email. The caller has
// already persisted the email and its analysis; by the time Route runs
// there is a durable record to attribute every outward action to.
func (r *ActionRouter) Route(ctx context.Context, email *models.Email, analysis *models.Analysis) {
	switch analysis.Category {
	case models.CategoryEnrollmentInquiry, models.CategoryTourRequest:
		r.handleWaitlist(ctx, email, analysis)
	case models.CategorySpam:
		r.recordOutcome(ctx, email.MessageID, "flag-spam",
			r.emails.UpdateFlags(ctx, email.MessageID, map[string]bool{"isSpam": true}))
		// Also move it to the provider's spam folder.
		r.recordOutcome(ctx, email.MessageID, "provider-mark-spam",
			r.applyLabel(ctx, email.MessageID, "SPAM"))
	}

	if analysis.Priority == models.PriorityUrgent || analysis.Priority == models.PriorityHigh ||
		analysis.Category == models.CategoryUrgent || analysis.Category == models.CategoryComplaint {
		r.handleEscalation(ctx, email)
	}

	if analysis.ShouldAutoRespond && !analysis.SuggestedResponse.RequiresReview &&
		analysis.SuggestedResponse.Text != "" {
		r.handleAutoResponse(ctx, email, analysis)
	}

	// Every processed email gets a label matching its category.
	r.recordOutcome(ctx, email.MessageID, "apply-label",
		r.applyLabel(ctx, email.MessageID, labelPrefix+string(analysis.Category)))
}

func (r *ActionRouter) applyLabel(ctx context.Context, messageID, name string) error {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.inbox.ApplyLabel(callCtx, messageID, name)
}

// handleWaitlist creates a waitlist entry when extraction is complete.
// An incomplete extraction flags the email for manual handling instead:
// a partial record with missing required fields is never written.
func (r *ActionRouter) handleWaitlist(ctx context.Context, email *models.Email, analysis *models.Analysis) {
	info := analysis.ExtractedInfo
	if info.ChildName == "" || info.ParentEmail == "" {
		err := r.emails.UpdateFlags(ctx, email.MessageID, map[string]bool{"requiresAction": true})
		r.recordOutcome(ctx, email.MessageID, "waitlist-incomplete", err)
		r.logger.Info("waitlist extraction incomplete, flagged for manual handling",
			zap.String("messageId", email.MessageID))
		return
	}

	entry := &models.WaitlistEntry{
		ChildName:          info.ChildName,
		ChildDateOfBirth:   info.ChildDateOfBirth,
		ParentName:         info.ParentName,
		ParentEmail:        info.ParentEmail,
		ParentPhone:        info.ParentPhone,
		PreferredStartDate: info.PreferredStartDate,
		Program:            info.Program,
		Status:             models.WaitlistActive,
		Priority:           analysis.Priority,
		EmailID:            email.MessageID,
	}

	created, err := r.waitlist.Create(ctx, entry)
	r.recordOutcome(ctx, email.MessageID, "create-waitlist-entry", err)
	if err != nil {
		return
	}

	metrics.WaitlistEntriesCreated.Inc()
	r.logger.Info("waitlist entry created",
		zap.String("messageId", email.MessageID),
		zap.String("child", created.ChildName),
		zap.Int("position", created.Position))
}

func (r *ActionRouter) handleEscalation(ctx context.Context, email *models.Email) {
	err := r.emails.UpdateFlags(ctx, email.MessageID, map[string]bool{
		"requiresAction": true,
		"isImportant":    true,
	})
	r.recordOutcome(ctx, email.MessageID, "flag-important", err)

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	err = r.inbox.MarkImportant(callCtx, email.MessageID)
	r.recordOutcome(ctx, email.MessageID, "provider-mark-important", err)
}

// handleAutoResponse sends the suggested reply. A send failure is recorded
// on the email, never returned: labeling and the rest of the pass continue.
func (r *ActionRouter) handleAutoResponse(ctx context.Context, email *models.Email, analysis *models.Analysis) {
	subject := email.Subject
	if subject != "" && !utils.HasReplyPrefix(subject) {
		subject = "Re: " + subject
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	_, err := r.mailer.Send(sendCtx, &OutboundEmail{
		To:       email.From.Email,
		Subject:  subject,
		Text:     analysis.SuggestedResponse.Text,
		ThreadID: email.ThreadID,
	})
	r.recordOutcome(ctx, email.MessageID, "auto-respond", err)
	if err != nil {
		return
	}

	metrics.AutoRepliesSent.Inc()
	now := time.Now()
	if err := r.emails.SetResponse(ctx, email.MessageID, models.ResponseInfo{
		Status:       models.ResponseSent,
		ResponseText: analysis.SuggestedResponse.Text,
		RespondedAt:  &now,
		RespondedBy:  "auto-responder",
	}); err != nil {
		r.logger.Error("failed to record auto-response status",
			zap.String("messageId", email.MessageID), zap.Error(err))
	}
}

// recordOutcome writes the audit entry for one side effect and, on failure,
// an errors[] entry. Store failures here are logged only; the router never
// aborts the pass.
func (r *ActionRouter) recordOutcome(ctx context.Context, messageID, action string, actionErr error) {
	entry := models.AutoAction{
		ID:          uuid.NewString(),
		Action:      action,
		PerformedAt: time.Now(),
		Success:     actionErr == nil,
	}
	if actionErr != nil {
		entry.Error = actionErr.Error()
		metrics.ActionFailures.WithLabelValues(action).Inc()
		r.logger.Warn("side effect failed",
			zap.String("messageId", messageID),
			zap.String("action", action),
			zap.Error(actionErr))

		if err := r.emails.AppendError(ctx, messageID, models.ErrorEntry{
			Type:    KindAction,
			Message: action + ": " + actionErr.Error(),
		}); err != nil {
			r.logger.Error("failed to append error entry",
				zap.String("messageId", messageID), zap.Error(err))
		}
	}

	if err := r.emails.RecordAutoAction(ctx, messageID, entry); err != nil {
		r.logger.Error("failed to record auto action",
			zap.String("messageId", messageID),
			zap.String("action", action),
			zap.Error(err))
	}
}
