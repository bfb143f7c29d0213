package models

import (
	"time"
)

// Category is the closed set of labels the classifier may assign.
type Category string

const (
	CategoryEnrollmentInquiry Category = "enrollment-inquiry"
	CategoryParentQuestion    Category = "parent-question"
	CategoryPaymentInquiry    Category = "payment-inquiry"
	CategoryScheduleRequest   Category = "schedule-request"
	CategoryComplaint         Category = "complaint"
	CategoryCompliment        Category = "compliment"
	CategoryUrgent            Category = "urgent"
	CategoryVendor            Category = "vendor"
	CategorySpam              Category = "spam"
	CategoryNewsletter        Category = "newsletter"
	CategoryAdministrative    Category = "administrative"
	CategoryTourRequest       Category = "tour-request"
	CategoryGeneral           Category = "general"
	CategoryUnclassified      Category = "unclassified"
)

// Categories lists every valid category value.
var Categories = []Category{
	CategoryEnrollmentInquiry,
	CategoryParentQuestion,
	CategoryPaymentInquiry,
	CategoryScheduleRequest,
	CategoryComplaint,
	CategoryCompliment,
	CategoryUrgent,
	CategoryVendor,
	CategorySpam,
	CategoryNewsletter,
	CategoryAdministrative,
	CategoryTourRequest,
	CategoryGeneral,
	CategoryUnclassified,
}

// NormalizeCategory maps any string to a member of the closed set.
// Unrecognized values become CategoryUnclassified, never stored verbatim.
func NormalizeCategory(s string) Category {
	for _, c := range Categories {
		if string(c) == s {
			return c
		}
	}
	return CategoryUnclassified
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// NormalizePriority maps any string onto the ladder, defaulting to normal.
func NormalizePriority(s string) Priority {
	switch Priority(s) {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(s)
	}
	return PriorityNormal
}

// NextPriority moves one step up the ladder low < normal < high < urgent.
// urgent is the ceiling and maps to itself.
func NextPriority(p Priority) Priority {
	switch p {
	case PriorityLow:
		return PriorityNormal
	case PriorityNormal:
		return PriorityHigh
	case PriorityHigh:
		return PriorityUrgent
	default:
		return PriorityUrgent
	}
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func NormalizeSentiment(s string) Sentiment {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNegative:
		return Sentiment(s)
	}
	return SentimentNeutral
}

type EmailAddress struct {
	Name  string `json:"name,omitempty" bson:"name,omitempty"`
	Email string `json:"email" bson:"email"`
}

type Attachment struct {
	ID         string `json:"id" bson:"id"` // provider attachment id
	Filename   string `json:"filename" bson:"filename"`
	MimeType   string `json:"mimeType" bson:"mimeType"`
	Size       int64  `json:"size" bson:"size"`
	Downloaded bool   `json:"downloaded" bson:"downloaded"`
	Data       []byte `json:"-" bson:"-"`
}

type EmailBody struct {
	Text string `json:"text,omitempty" bson:"text,omitempty"`
	HTML string `json:"html,omitempty" bson:"html,omitempty"`
}

// EmailFlags are independent booleans mutated by the action router and
// manual review.
type EmailFlags struct {
	IsRead         bool `json:"isRead" bson:"isRead"`
	IsImportant    bool `json:"isImportant" bson:"isImportant"`
	IsStarred      bool `json:"isStarred" bson:"isStarred"`
	IsArchived     bool `json:"isArchived" bson:"isArchived"`
	IsDeleted      bool `json:"isDeleted" bson:"isDeleted"`
	RequiresAction bool `json:"requiresAction" bson:"requiresAction"`
	IsSpam         bool `json:"isSpam" bson:"isSpam"`
}

// ExtractedInfo holds the typed extraction targets plus a bounded bag for
// anything else the model volunteers.
type ExtractedInfo struct {
	ChildName          string            `json:"childName,omitempty" bson:"childName,omitempty"`
	ChildDateOfBirth   string            `json:"childDateOfBirth,omitempty" bson:"childDateOfBirth,omitempty"`
	ParentName         string            `json:"parentName,omitempty" bson:"parentName,omitempty"`
	ParentEmail        string            `json:"parentEmail,omitempty" bson:"parentEmail,omitempty"`
	ParentPhone        string            `json:"parentPhone,omitempty" bson:"parentPhone,omitempty"`
	PreferredStartDate string            `json:"preferredStartDate,omitempty" bson:"preferredStartDate,omitempty"`
	Program            string            `json:"program,omitempty" bson:"program,omitempty"`
	Other              map[string]string `json:"other,omitempty" bson:"other,omitempty"`
}

type SuggestedResponse struct {
	Template       string  `json:"template,omitempty" bson:"template,omitempty"`
	Text           string  `json:"text,omitempty" bson:"text,omitempty"`
	Confidence     float64 `json:"confidence" bson:"confidence"`
	RequiresReview bool    `json:"requiresReview" bson:"requiresReview"`
}

type Intent struct {
	Intent     string   `json:"intent" bson:"intent"`
	Confidence float64  `json:"confidence" bson:"confidence"`
	Entities   []string `json:"entities,omitempty" bson:"entities,omitempty"`
}

// Analysis is the classifier's verdict for one email. It is embedded into
// Email.AIProcessing when the message is marked processed.
type Analysis struct {
	Category          Category          `json:"category" bson:"category"`
	Confidence        float64           `json:"confidence" bson:"confidence"`
	Sentiment         Sentiment         `json:"sentiment" bson:"sentiment"`
	SentimentScore    float64           `json:"sentimentScore" bson:"sentimentScore"`
	Priority          Priority          `json:"priority" bson:"priority"`
	PriorityReason    string            `json:"priorityReason,omitempty" bson:"priorityReason,omitempty"`
	Intents           []Intent          `json:"intents,omitempty" bson:"intents,omitempty"`
	ExtractedInfo     ExtractedInfo     `json:"extractedInfo" bson:"extractedInfo"`
	SuggestedResponse SuggestedResponse `json:"suggestedResponse" bson:"suggestedResponse"`
	ShouldAutoRespond bool              `json:"shouldAutoRespond" bson:"shouldAutoRespond"`
}

// AutoAction is one automatic side effect performed for an email, kept for
// audit whether it succeeded or not.
type AutoAction struct {
	ID          string    `json:"id" bson:"id"`
	Action      string    `json:"action" bson:"action"`
	PerformedAt time.Time `json:"performedAt" bson:"performedAt"`
	Success     bool      `json:"success" bson:"success"`
	Error       string    `json:"error,omitempty" bson:"error,omitempty"`
}

type AIProcessing struct {
	Processed         bool       `json:"processed" bson:"processed"`
	ProcessedAt       *time.Time `json:"processedAt,omitempty" bson:"processedAt,omitempty"`
	ProcessingVersion int        `json:"processingVersion" bson:"processingVersion"`

	Category       Category  `json:"category" bson:"category"`
	Confidence     float64   `json:"confidence" bson:"confidence"`
	Sentiment      Sentiment `json:"sentiment" bson:"sentiment"`
	SentimentScore float64   `json:"sentimentScore" bson:"sentimentScore"`
	Priority       Priority  `json:"priority" bson:"priority"`
	PriorityReason string    `json:"priorityReason,omitempty" bson:"priorityReason,omitempty"`

	Intents           []Intent          `json:"intents,omitempty" bson:"intents,omitempty"`
	ExtractedInfo     ExtractedInfo     `json:"extractedInfo" bson:"extractedInfo"`
	SuggestedResponse SuggestedResponse `json:"suggestedResponse" bson:"suggestedResponse"`
	AutoActions       []AutoAction      `json:"autoActions,omitempty" bson:"autoActions,omitempty"`

	EscalationCount   int      `json:"escalationCount" bson:"escalationCount"`
	EscalationReasons []string `json:"escalationReasons,omitempty" bson:"escalationReasons,omitempty"`
}

type ResponseStatus string

const (
	ResponseNotRequired    ResponseStatus = "not-required"
	ResponsePending        ResponseStatus = "pending"
	ResponseDrafted        ResponseStatus = "drafted"
	ResponseSent           ResponseStatus = "sent"
	ResponseFollowUpNeeded ResponseStatus = "follow-up-needed"
)

type ResponseInfo struct {
	Status       ResponseStatus `json:"status" bson:"status"`
	ResponseText string         `json:"responseText,omitempty" bson:"responseText,omitempty"`
	RespondedAt  *time.Time     `json:"respondedAt,omitempty" bson:"respondedAt,omitempty"`
	RespondedBy  string         `json:"respondedBy,omitempty" bson:"respondedBy,omitempty"`
}

// ErrorEntry is an append-only diagnostic record. Entries are never
// overwritten or removed.
type ErrorEntry struct {
	Type       string    `json:"type" bson:"type"`
	Message    string    `json:"message" bson:"message"`
	OccurredAt time.Time `json:"occurredAt" bson:"occurredAt"`
	Resolved   bool      `json:"resolved" bson:"resolved"`
}

// Email is the canonical persisted message. MessageID is the provider
// message id and the idempotency key: at most one document per id.
type Email struct {
	ID         string         `json:"id" bson:"_id,omitempty"`
	MessageID  string         `json:"messageId" bson:"messageId"`
	ThreadID   string         `json:"threadId,omitempty" bson:"threadId,omitempty"`
	From       EmailAddress   `json:"from" bson:"from"`
	To         []EmailAddress `json:"to" bson:"to"`
	Cc         []EmailAddress `json:"cc,omitempty" bson:"cc,omitempty"`
	Bcc        []EmailAddress `json:"bcc,omitempty" bson:"bcc,omitempty"`
	Subject    string         `json:"subject" bson:"subject"`
	Body       EmailBody      `json:"body" bson:"body"`
	Snippet    string         `json:"snippet" bson:"snippet"`
	ReceivedAt time.Time      `json:"receivedAt" bson:"receivedAt"`

	Attachments []Attachment `json:"attachments,omitempty" bson:"attachments,omitempty"`

	AIProcessing AIProcessing `json:"aiProcessing" bson:"aiProcessing"`
	Flags        EmailFlags   `json:"flags" bson:"flags"`
	Response     ResponseInfo `json:"response" bson:"response"`
	Errors       []ErrorEntry `json:"errors,omitempty" bson:"errors,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

type EmailListResponse struct {
	Emails      []*Email `json:"emails"`
	Total       int      `json:"total"`
	Page        int      `json:"page"`
	PerPage     int      `json:"perPage"`
	HasNextPage bool     `json:"hasNextPage"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
