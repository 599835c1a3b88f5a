package quotation

import "time"

const (
	StatusDraft    = "draft"
	StatusSent     = "sent"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// transitions is the approval state machine: approved is terminal, a
// rejected quotation can be revised and re-sent.
var transitions = map[string][]string{
	StatusDraft:    {StatusSent},
	StatusSent:     {StatusApproved, StatusRejected},
	StatusRejected: {StatusSent},
	StatusApproved: {},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ApprovalEntry is one record of the append-only approval log. Its Status is
// the narrative label for the log, which on rejection may intentionally
// differ from the document's own status field.
type ApprovalEntry struct {
	Status    string    `bson:"status" json:"status"`
	Comment   string    `bson:"comment,omitempty" json:"comment,omitempty"`
	UpdatedBy string    `bson:"updated_by" json:"updated_by"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type LineItem struct {
	Description string `bson:"description" json:"description"`
	Quantity    int64  `bson:"quantity" json:"quantity"`
	UnitPrice   int64  `bson:"unit_price" json:"unit_price"`
}

type Quotation struct {
	ID              string          `bson:"_id,omitempty" json:"id"`
	OrganizationID  string          `bson:"organization_id" json:"organization_id"`
	LeadID          string          `bson:"lead_id" json:"lead_id"`
	CreatorID       string          `bson:"creator_id" json:"creator_id"`
	Title           string          `bson:"title" json:"title"`
	Items           []LineItem      `bson:"items" json:"items"`
	Currency        string          `bson:"currency" json:"currency"`
	Total           int64           `bson:"total" json:"total"`
	Status          string          `bson:"status" json:"status"`
	ApprovalHistory []ApprovalEntry `bson:"approval_history" json:"approval_history"`
	CreatedAt       time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `bson:"updated_at" json:"updated_at"`
}

type LineItemInput struct {
	Description string `json:"description" validate:"required,min=1"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	UnitPrice   int64  `json:"unit_price" validate:"required,gt=0"`
}

type CreateRequest struct {
	LeadID   string          `json:"lead_id" validate:"required"`
	Title    string          `json:"title" validate:"required,min=2"`
	Currency string          `json:"currency" validate:"required,len=3"`
	Items    []LineItemInput `json:"items" validate:"required,min=1,dive"`
}

type ApproveRequest struct {
	Comment string `json:"comment"`
}

type RejectRequest struct {
	Reason string `json:"reason" validate:"required,min=1"`
}
