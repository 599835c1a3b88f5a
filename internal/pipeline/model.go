package pipeline

import "time"

const (
	StageTypeOpen  = "open"
	StageTypeClose = "close"

	FieldTypeText        = "Text"
	FieldTypeDate        = "Date"
	FieldTypeNumber      = "Number"
	FieldTypeMultiSelect = "MultiSelect"
)

var validFieldTypes = map[string]struct{}{
	FieldTypeText:        {},
	FieldTypeDate:        {},
	FieldTypeNumber:      {},
	FieldTypeMultiSelect: {},
}

func IsValidFieldType(value string) bool {
	_, ok := validFieldTypes[value]
	return ok
}

// Stage is a step in a pipeline. A stage lives in exactly one of the two
// stage lists; won/lost only ever apply to close stages.
type Stage struct {
	ID    string `bson:"id" json:"id"`
	Name  string `bson:"name" json:"name"`
	Color string `bson:"color" json:"color"`
	Won   bool   `bson:"won" json:"won"`
	Lost  bool   `bson:"lost" json:"lost"`
}

type CustomField struct {
	ID      string   `bson:"id" json:"id"`
	Name    string   `bson:"name" json:"name"`
	Type    string   `bson:"type" json:"type"`
	Options []string `bson:"options,omitempty" json:"options,omitempty"`
}

type Pipeline struct {
	ID             string        `bson:"_id,omitempty" json:"id"`
	OrganizationID string        `bson:"organization_id" json:"organization_id"`
	Name           string        `bson:"name" json:"name"`
	OpenStages     []Stage       `bson:"open_stages" json:"open_stages"`
	CloseStages    []Stage       `bson:"close_stages" json:"close_stages"`
	CustomFields   []CustomField `bson:"custom_fields" json:"custom_fields"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

// StageByID searches both lists.
func (p Pipeline) StageByID(id string) (Stage, bool) {
	for _, s := range p.OpenStages {
		if s.ID == id {
			return s, true
		}
	}
	for _, s := range p.CloseStages {
		if s.ID == id {
			return s, true
		}
	}
	return Stage{}, false
}

type CreateRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}

type AddStageRequest struct {
	Name  string `json:"name" validate:"required,min=1"`
	Type  string `json:"type" validate:"required,oneof=open close"`
	Color string `json:"color" validate:"omitempty,stagecolor"`
	Won   bool   `json:"won"`
	Lost  bool   `json:"lost"`
}

type BulkDeleteStagesRequest struct {
	StageIDs []string `json:"stage_ids" validate:"required,min=1"`
}

type AddCustomFieldRequest struct {
	Name    string   `json:"name" validate:"required,min=1"`
	Type    string   `json:"type" validate:"required,oneof=Text Date Number MultiSelect"`
	Options []string `json:"options"`
}
