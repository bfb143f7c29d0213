package models

// CategoryStats - count of emails by classifier category
type CategoryStats struct {
	Category string `json:"category" bson:"_id"`
	Count    int    `json:"count" bson:"count"`
}

// PriorityStats - count of emails by priority
type PriorityStats struct {
	Priority string `json:"priority" bson:"_id"`
	Count    int    `json:"count" bson:"count"`
}

// EmailTrendPoint - count of emails received on a specific date
type EmailTrendPoint struct {
	Date  string `json:"date" bson:"_id"` // YYYY-MM-DD format
	Count int    `json:"count" bson:"count"`
}

// TopSender - represents a top email sender with count
type TopSender struct {
	Name  string `json:"name" bson:"name"`
	Email string `json:"email" bson:"email"`
	Count int    `json:"count" bson:"count"`
}

// StatisticsResponse - complete statistics response for the dashboard
type StatisticsResponse struct {
	CategoryStats    []CategoryStats   `json:"categoryStats"`
	PriorityStats    []PriorityStats   `json:"priorityStats"`
	EmailTrend       []EmailTrendPoint `json:"emailTrend"`
	TopSenders       []TopSender       `json:"topSenders"`
	TotalEmails      int               `json:"totalEmails"`
	UnprocessedCount int               `json:"unprocessedCount"`
	RequiresAction   int               `json:"requiresAction"`
	WaitlistActive   int               `json:"waitlistActive"`
	Period           string            `json:"period"` // "7d", "30d", "90d"
}
