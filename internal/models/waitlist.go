package models

import (
	"time"
)

type WaitlistStatus string

const (
	WaitlistActive    WaitlistStatus = "active"
	WaitlistContacted WaitlistStatus = "contacted"
	WaitlistOffered   WaitlistStatus = "offered"
	WaitlistAccepted  WaitlistStatus = "accepted"
	WaitlistDeclined  WaitlistStatus = "declined"
	WaitlistExpired   WaitlistStatus = "expired"
	WaitlistRemoved   WaitlistStatus = "removed"
)

func ValidWaitlistStatus(s string) bool {
	switch WaitlistStatus(s) {
	case WaitlistActive, WaitlistContacted, WaitlistOffered,
		WaitlistAccepted, WaitlistDeclined, WaitlistExpired, WaitlistRemoved:
		return true
	}
	return false
}

// WaitlistEntry is created as a side effect of classification when an
// enrollment inquiry carries a complete extraction. Position ranks the
// entry among active entries and is append-only: it is assigned once at
// creation and never renumbered by unrelated updates.
type WaitlistEntry struct {
	ID                 string         `json:"id" bson:"_id,omitempty"`
	ChildName          string         `json:"childName" bson:"childName"`
	ChildDateOfBirth   string         `json:"childDateOfBirth,omitempty" bson:"childDateOfBirth,omitempty"`
	ParentName         string         `json:"parentName,omitempty" bson:"parentName,omitempty"`
	ParentEmail        string         `json:"parentEmail" bson:"parentEmail"`
	ParentPhone        string         `json:"parentPhone,omitempty" bson:"parentPhone,omitempty"`
	PreferredStartDate string         `json:"preferredStartDate,omitempty" bson:"preferredStartDate,omitempty"`
	Program            string         `json:"program,omitempty" bson:"program,omitempty"`
	Status             WaitlistStatus `json:"status" bson:"status"`
	Priority           Priority       `json:"priority" bson:"priority"`
	Position           int            `json:"position" bson:"position"`
	EmailID            string         `json:"emailId,omitempty" bson:"emailId,omitempty"`
	Notes              string         `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt          time.Time      `json:"createdAt" bson:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt" bson:"updatedAt"`
}

type WaitlistListResponse struct {
	Entries []*WaitlistEntry `json:"entries"`
	Total   int              `json:"total"`
}
