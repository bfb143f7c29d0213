package services

import (
	"context"
	"time"

	"schoolbox-be/internal/models"

	"google.golang.org/api/gmail/v1"
)

// Inbox is the provider-side read/modify surface the pipeline consumes.
// GmailService implements it; tests substitute fakes.
type Inbox interface {
	ListRecent(ctx context.Context, window time.Duration, maxResults int64) ([]MessageRef, error)
	Fetch(ctx context.Context, id string) (*gmail.Message, error)
	ApplyLabel(ctx context.Context, messageID, labelName string) error
	MarkImportant(ctx context.Context, messageID string) error
	MarkProcessed(ctx context.Context, messageID string) error
}

// Classifier turns an email into an analysis.
type Classifier interface {
	Classify(ctx context.Context, email *models.Email) (*models.Analysis, error)
}

// Mailer sends outbound email and returns the provider message id.
type Mailer interface {
	Send(ctx context.Context, out *OutboundEmail) (string, error)
}

// EmailStore is the persistence surface the pipeline and router need.
type EmailStore interface {
	FindByMessageID(ctx context.Context, messageID string) (*models.Email, error)
	ListUnprocessed(ctx context.Context, limit int64) ([]*models.Email, error)
	Save(ctx context.Context, email *models.Email) (*models.Email, error)
	MarkProcessed(ctx context.Context, messageID string, analysis *models.Analysis) error
	AppendError(ctx context.Context, messageID string, entry models.ErrorEntry) error
	RecordAutoAction(ctx context.Context, messageID string, action models.AutoAction) error
	UpdateFlags(ctx context.Context, messageID string, flags map[string]bool) error
	SetResponse(ctx context.Context, messageID string, info models.ResponseInfo) error
}

// WaitlistStore persists waitlist entries created by the router.
type WaitlistStore interface {
	Create(ctx context.Context, entry *models.WaitlistEntry) (*models.WaitlistEntry, error)
}
