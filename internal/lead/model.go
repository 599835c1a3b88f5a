package lead

import "time"

const (
	ActionCreated    = "Created"
	ActionStageMoved = "Stage Moved"
	ActionAssigned   = "Assigned"
	ActionClosed     = "Closed"

	// Timeline label used when a follow-up is closed through the lead route.
	StageFollowupClosed = "Followup Closed"

	SourceManual      = "manual"
	SourceIntegration = "integration"
)

// TimelineEntry is one event in a lead's history. The timeline only grows;
// entries are never edited or removed.
type TimelineEntry struct {
	Stage     string    `bson:"stage" json:"stage"`
	Action    string    `bson:"action" json:"action"`
	Remark    string    `bson:"remark,omitempty" json:"remark,omitempty"`
	MovedBy   string    `bson:"moved_by" json:"moved_by"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Lead struct {
	ID             string                 `bson:"_id,omitempty" json:"id"`
	OrganizationID string                 `bson:"organization_id" json:"organization_id"`
	Title          string                 `bson:"title" json:"title"`
	ContactName    string                 `bson:"contact_name" json:"contact_name"`
	ContactEmail   string                 `bson:"contact_email,omitempty" json:"contact_email,omitempty"`
	ContactPhone   string                 `bson:"contact_phone,omitempty" json:"contact_phone,omitempty"`
	PipelineID     string                 `bson:"pipeline_id" json:"pipeline_id"`
	// Stage is referenced by id; the display name is resolved at read time so
	// stage renames cannot orphan leads.
	StageID        string                 `bson:"stage_id" json:"stage_id"`
	StageName      string                 `bson:"-" json:"stage_name,omitempty"`
	AssigneeID     string                 `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	Source         string                 `bson:"source" json:"source"`
	CustomValues   map[string]interface{} `bson:"custom_values,omitempty" json:"custom_values,omitempty"`
	Timeline       []TimelineEntry        `bson:"timeline" json:"timeline"`
	// Version guards against lost updates: every write filters on the version
	// it read and increments it, so a stale write matches nothing.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type CreateRequest struct {
	Title        string                 `json:"title" validate:"required,min=2"`
	ContactName  string                 `json:"contact_name" validate:"required,min=2"`
	ContactEmail string                 `json:"contact_email" validate:"omitempty,email"`
	ContactPhone string                 `json:"contact_phone" validate:"omitempty,phone"`
	PipelineID   string                 `json:"pipeline_id" validate:"required"`
	StageID      string                 `json:"stage_id" validate:"required"`
	AssigneeID   string                 `json:"assignee_id"`
	Source       string                 `json:"source" validate:"omitempty,oneof=manual integration"`
	CustomValues map[string]interface{} `json:"custom_values"`
}

type MoveStageRequest struct {
	StageID string `json:"stage_id" validate:"required"`
	Remark  string `json:"remark"`
}

type AssignRequest struct {
	AssigneeID string `json:"assignee_id" validate:"required"`
}

type TimelineEntryRequest struct {
	Stage  string `json:"stage" validate:"required"`
	Action string `json:"action" validate:"required"`
	Remark string `json:"remark"`
}

type CloseFollowupRequest struct {
	Remark string `json:"remark" validate:"required,min=1"`
}

type ListFilter struct {
	PipelineID string
	StageID    string
	AssigneeID string
}

// StageCount is one bucket of the reporting aggregation.
type StageCount struct {
	StageID string `bson:"_id"`
	Count   int64  `bson:"count"`
}

// Report classifies an organization's leads by current stage membership.
type Report struct {
	Total int64 `json:"total"`
	Open  int64 `json:"open"`
	Won   int64 `json:"won"`
	Lost  int64 `json:"lost"`
}
