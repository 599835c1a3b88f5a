package followup

import "time"

const (
	TypeCall     = "Call"
	TypeEmail    = "Email"
	TypeWhatsApp = "WhatsApp"

	StageOpen   = "Open"
	StageClosed = "Closed"

	NotifyEmail    = "email"
	NotifyWhatsApp = "whatsapp"

	TriggerMinutes  = "minutes"
	TriggerHours    = "hours"
	TriggerDays     = "days"
	TriggerSpecific = "specific"
)

var validNotificationTypes = map[string]struct{}{
	NotifyEmail:    {},
	NotifyWhatsApp: {},
}

var validTriggerTypes = map[string]struct{}{
	TriggerMinutes:  {},
	TriggerHours:    {},
	TriggerDays:     {},
	TriggerSpecific: {},
}

type Remark struct {
	Text      string    `bson:"text" json:"text"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Reminder is a notification rule attached to a follow-up. TriggerAt is
// computed once at write time so the dispatcher can scan on an indexed field.
// Sent flips false -> true exactly once, at or after TriggerAt.
type Reminder struct {
	ID               string     `bson:"id" json:"id"`
	NotificationType string     `bson:"notification_type" json:"notification_type"`
	TriggerType      string     `bson:"trigger_type" json:"trigger_type"`
	Value            int        `bson:"value,omitempty" json:"value,omitempty"`
	Date             *time.Time `bson:"date,omitempty" json:"date,omitempty"`
	TriggerAt        time.Time  `bson:"trigger_at" json:"trigger_at"`
	Sent             bool       `bson:"sent" json:"sent"`
	SentAt           *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}

type Followup struct {
	ID             string     `bson:"_id,omitempty" json:"id"`
	OrganizationID string     `bson:"organization_id" json:"organization_id"`
	LeadID         string     `bson:"lead_id" json:"lead_id"`
	AddedBy        string     `bson:"added_by" json:"added_by"`
	Description    string     `bson:"description" json:"description"`
	Type           string     `bson:"type" json:"type"`
	FollowupDate   time.Time  `bson:"followup_date" json:"followup_date"`
	Stage          string     `bson:"stage" json:"stage"`
	Remarks        []Remark   `bson:"remarks" json:"remarks"`
	Reminders      []Reminder `bson:"reminders" json:"reminders"`
	CreatedAt      time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `bson:"updated_at" json:"updated_at"`
}

type ReminderInput struct {
	NotificationType string     `json:"notification_type"`
	TriggerType      string     `json:"trigger_type"`
	Value            int        `json:"value,omitempty"`
	Date             *time.Time `json:"date,omitempty"`
}

type CreateRequest struct {
	LeadID       string          `json:"lead_id" validate:"required"`
	Description  string          `json:"description" validate:"required,min=1"`
	Type         string          `json:"type" validate:"required,oneof=Call Email WhatsApp"`
	FollowupDate time.Time       `json:"followup_date" validate:"required"`
	Reminders    []ReminderInput `json:"reminders"`
}

// RejectedReminder reports one reminder that failed local validation during
// create; the rest of the request is unaffected.
type RejectedReminder struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

type UpdateRequest struct {
	Remark       string     `json:"remark,omitempty"`
	FollowupDate *time.Time `json:"followup_date,omitempty"`
}

type CloseRequest struct {
	Remark string `json:"remark" validate:"required,min=1"`
}
