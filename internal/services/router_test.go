package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolbox-be/internal/models"

	"go.uber.org/zap"
)

func newTestRouter(emails *fakeEmailStore, waitlist *fakeWaitlistStore, inbox Inbox, mailer Mailer) *ActionRouter {
	return NewActionRouter(emails, waitlist, inbox, mailer, time.Second, zap.NewNop())
}

func waitlistEmail(id string) *models.Email {
	return &models.Email{
		MessageID: id,
		ThreadID:  "thread-" + id,
		From:      models.EmailAddress{Name: "John Doe", Email: "john@example.com"},
		Subject:   "Enrollment for Jane",
	}
}

func TestRouteCreatesWaitlistEntryFromCompleteExtraction(t *testing.T) {
	emails := newFakeEmailStore()
	waitlist := &fakeWaitlistStore{}
	inbox := newFakeInbox()
	mailer := &fakeMailer{}
	router := newTestRouter(emails, waitlist, inbox, mailer)

	analysis := &models.Analysis{
		Category: models.CategoryEnrollmentInquiry,
		Priority: models.PriorityNormal,
		ExtractedInfo: models.ExtractedInfo{
			ChildName:   "Jane Doe",
			ParentEmail: "john@example.com",
			ParentName:  "John Doe",
			Program:     "Full Day",
		},
	}

	router.Route(context.Background(), waitlistEmail("msg-w1"), analysis)

	if len(waitlist.entries) != 1 {
		t.Fatalf("waitlist entries = %d, want 1", len(waitlist.entries))
	}
	entry := waitlist.entries[0]
	if entry.ChildName != "Jane Doe" || entry.ParentEmail != "john@example.com" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.Status != models.WaitlistActive {
		t.Errorf("status = %q, want active", entry.Status)
	}
	if entry.EmailID != "msg-w1" {
		t.Errorf("emailId = %q, want msg-w1", entry.EmailID)
	}
	if entry.Position != 1 {
		t.Errorf("position = %d, want 1", entry.Position)
	}
}

func TestRouteIncompleteExtractionFlagsInsteadOfPartialEntry(t *testing.T) {
	emails := newFakeEmailStore()
	waitlist := &fakeWaitlistStore{}
	router := newTestRouter(emails, waitlist, newFakeInbox(), &fakeMailer{})

	analysis := &models.Analysis{
		Category: models.CategoryEnrollmentInquiry,
		Priority: models.PriorityNormal,
		ExtractedInfo: models.ExtractedInfo{
			ChildName: "Jane Doe",
			// no parent email
		},
	}

	router.Route(context.Background(), waitlistEmail("msg-w2"), analysis)

	if len(waitlist.entries) != 0 {
		t.Fatalf("partial waitlist entry was created: %+v", waitlist.entries[0])
	}
	if !emails.flags["msg-w2"]["requiresAction"] {
		t.Error("requiresAction flag not set for incomplete extraction")
	}
}

func TestRouteUrgentEscalation(t *testing.T) {
	emails := newFakeEmailStore()
	inbox := newFakeInbox()
	router := newTestRouter(emails, &fakeWaitlistStore{}, inbox, &fakeMailer{})

	analysis := &models.Analysis{
		Category: models.CategoryComplaint,
		Priority: models.PriorityUrgent,
	}

	router.Route(context.Background(), waitlistEmail("msg-u1"), analysis)

	flags := emails.flags["msg-u1"]
	if !flags["requiresAction"] || !flags["isImportant"] {
		t.Errorf("flags = %v, want requiresAction and isImportant", flags)
	}
	if len(inbox.important) != 1 || inbox.important[0] != "msg-u1" {
		t.Errorf("provider important marks = %v", inbox.important)
	}
}

func TestRouteSpamFlag(t *testing.T) {
	emails := newFakeEmailStore()
	inbox := newFakeInbox()
	router := newTestRouter(emails, &fakeWaitlistStore{}, inbox, &fakeMailer{})

	router.Route(context.Background(), waitlistEmail("msg-s1"), &models.Analysis{
		Category: models.CategorySpam,
		Priority: models.PriorityLow,
	})

	if !emails.flags["msg-s1"]["isSpam"] {
		t.Error("isSpam flag not set")
	}
	var spamLabeled bool
	for _, l := range inbox.labels["msg-s1"] {
		if l == "SPAM" {
			spamLabeled = true
		}
	}
	if !spamLabeled {
		t.Errorf("SPAM label not applied: %v", inbox.labels["msg-s1"])
	}
}

func TestRouteAutoResponse(t *testing.T) {
	emails := newFakeEmailStore()
	mailer := &fakeMailer{}
	router := newTestRouter(emails, &fakeWaitlistStore{}, newFakeInbox(), mailer)

	analysis := &models.Analysis{
		Category:          models.CategoryParentQuestion,
		Priority:          models.PriorityNormal,
		ShouldAutoRespond: true,
		SuggestedResponse: models.SuggestedResponse{
			Text:           "Our hours are 8am to 5pm.",
			RequiresReview: false,
		},
	}

	router.Route(context.Background(), waitlistEmail("msg-a1"), analysis)

	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mailer.sent))
	}
	out := mailer.sent[0]
	if out.To != "john@example.com" {
		t.Errorf("to = %q", out.To)
	}
	if out.Subject != "Re: Enrollment for Jane" {
		t.Errorf("subject = %q", out.Subject)
	}
	if out.ThreadID != "thread-msg-a1" {
		t.Errorf("threadId = %q", out.ThreadID)
	}

	resp := emails.responses["msg-a1"]
	if resp.Status != models.ResponseSent || resp.RespondedBy != "auto-responder" {
		t.Errorf("response = %+v", resp)
	}
}

func TestRouteAutoResponseSkippedWhenReviewRequired(t *testing.T) {
	mailer := &fakeMailer{}
	router := newTestRouter(newFakeEmailStore(), &fakeWaitlistStore{}, newFakeInbox(), mailer)

	router.Route(context.Background(), waitlistEmail("msg-a2"), &models.Analysis{
		Category:          models.CategoryParentQuestion,
		Priority:          models.PriorityNormal,
		ShouldAutoRespond: true,
		SuggestedResponse: models.SuggestedResponse{Text: "draft", RequiresReview: true},
	})

	if len(mailer.sent) != 0 {
		t.Errorf("review-required response was sent: %+v", mailer.sent[0])
	}
}

func TestRouteSendFailureRecordedNotFatal(t *testing.T) {
	emails := newFakeEmailStore()
	mailer := &fakeMailer{err: errors.New("smtp unavailable")}
	inbox := newFakeInbox()
	router := newTestRouter(emails, &fakeWaitlistStore{}, inbox, mailer)

	router.Route(context.Background(), waitlistEmail("msg-f1"), &models.Analysis{
		Category:          models.CategoryParentQuestion,
		Priority:          models.PriorityNormal,
		ShouldAutoRespond: true,
		SuggestedResponse: models.SuggestedResponse{Text: "reply text"},
	})

	// The failure is in errors[] and the audit trail, and labeling still ran.
	if len(emails.errEntries) == 0 {
		t.Error("send failure not appended to errors")
	}
	var found bool
	for _, a := range emails.actions {
		if a.Action == "auto-respond" && !a.Success && a.Error != "" {
			found = true
		}
	}
	if !found {
		t.Errorf("auto-respond failure not in audit trail: %v", emails.actionNames())
	}
	if len(inbox.labels["msg-f1"]) != 1 {
		t.Error("label was not applied after send failure")
	}
	if _, ok := emails.responses["msg-f1"]; ok {
		t.Error("response status recorded despite send failure")
	}
}

func TestRouteAppliesCategoryLabel(t *testing.T) {
	inbox := newFakeInbox()
	router := newTestRouter(newFakeEmailStore(), &fakeWaitlistStore{}, inbox, &fakeMailer{})

	router.Route(context.Background(), waitlistEmail("msg-l1"), &models.Analysis{
		Category: models.CategoryScheduleRequest,
		Priority: models.PriorityNormal,
	})

	labels := inbox.labels["msg-l1"]
	if len(labels) != 1 || labels[0] != "schoolbox/schedule-request" {
		t.Errorf("labels = %v, want [schoolbox/schedule-request]", labels)
	}
}

// deadlineInbox records which provider calls arrived without a deadline.
type deadlineInbox struct {
	*fakeInbox
	missing []string
}

func (d *deadlineInbox) ApplyLabel(ctx context.Context, messageID, labelName string) error {
	if _, ok := ctx.Deadline(); !ok {
		d.missing = append(d.missing, "apply-label")
	}
	return d.fakeInbox.ApplyLabel(ctx, messageID, labelName)
}

func (d *deadlineInbox) MarkImportant(ctx context.Context, messageID string) error {
	if _, ok := ctx.Deadline(); !ok {
		d.missing = append(d.missing, "mark-important")
	}
	return d.fakeInbox.MarkImportant(ctx, messageID)
}

type deadlineMailer struct {
	fakeMailer
	missing []string
}

func (d *deadlineMailer) Send(ctx context.Context, out *OutboundEmail) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		d.missing = append(d.missing, "send")
	}
	return d.fakeMailer.Send(ctx, out)
}

func TestRouteSideEffectsCarryDeadline(t *testing.T) {
	inbox := &deadlineInbox{fakeInbox: newFakeInbox()}
	mailer := &deadlineMailer{}
	router := newTestRouter(newFakeEmailStore(), &fakeWaitlistStore{}, inbox, mailer)

	// The scheduler context has no deadline; every provider and mailer
	// call must still be bounded.
	router.Route(context.Background(), waitlistEmail("msg-d1"), &models.Analysis{
		Category:          models.CategoryComplaint,
		Priority:          models.PriorityUrgent,
		ShouldAutoRespond: true,
		SuggestedResponse: models.SuggestedResponse{Text: "We are looking into it."},
	})

	if len(inbox.missing) != 0 {
		t.Errorf("provider calls without a deadline: %v", inbox.missing)
	}
	if len(mailer.missing) != 0 {
		t.Errorf("mailer calls without a deadline: %v", mailer.missing)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(mailer.sent))
	}
}

func TestRouteWaitlistCreateFailureRecorded(t *testing.T) {
	emails := newFakeEmailStore()
	waitlist := &fakeWaitlistStore{err: errors.New("mongo down")}
	router := newTestRouter(emails, waitlist, newFakeInbox(), &fakeMailer{})

	router.Route(context.Background(), waitlistEmail("msg-f2"), &models.Analysis{
		Category: models.CategoryTourRequest,
		Priority: models.PriorityNormal,
		ExtractedInfo: models.ExtractedInfo{
			ChildName:   "Sam Smith",
			ParentEmail: "sam.parent@example.com",
		},
	})

	var found bool
	for _, a := range emails.actions {
		if a.Action == "create-waitlist-entry" && !a.Success {
			found = true
		}
	}
	if !found {
		t.Errorf("waitlist failure not in audit trail: %v", emails.actionNames())
	}
}
