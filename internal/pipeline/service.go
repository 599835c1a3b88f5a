package pipeline

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound         = errors.New("pipeline not found")
	ErrInvalidStageType = errors.New("invalid stage type")
	ErrWonLostExclusive = errors.New("a close stage is won or lost, not both")
	ErrFlagsOnOpenStage = errors.New("won/lost flags only apply to close stages")
	ErrInvalidFieldType = errors.New("invalid custom field type")
)

// StageClass partitions every stage of an organization for reporting.
type StageClass struct {
	Won   map[string]struct{}
	Lost  map[string]struct{}
	Close map[string]struct{}
}

type Service struct {
	repo     Repository
	location *time.Location
}

func NewService(repo Repository, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		location: location,
	}
}

func (s *Service) Create(ctx context.Context, orgID string, req CreateRequest) (Pipeline, error) {
	now := time.Now().In(s.location)
	p := Pipeline{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: orgID,
		Name:           strings.TrimSpace(req.Name),
		OpenStages:     []Stage{},
		CloseStages:    []Stage{},
		CustomFields:   []CustomField{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return Pipeline{}, err
	}
	return p, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Pipeline, error) {
	p, err := s.repo.GetByID(ctx, orgID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pipeline{}, ErrNotFound
		}
		return Pipeline{}, err
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, orgID string) ([]Pipeline, error) {
	return s.repo.List(ctx, orgID)
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	err := s.repo.Delete(ctx, orgID, strings.TrimSpace(id))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// AddStage appends a stage to the open or close list. Flags are rejected on
// open stages and at most one of won/lost may be set on a close stage.
func (s *Service) AddStage(ctx context.Context, orgID, id string, req AddStageRequest) (Pipeline, error) {
	stageType := strings.ToLower(strings.TrimSpace(req.Type))

	var listField string
	switch stageType {
	case StageTypeOpen:
		listField = "open_stages"
	case StageTypeClose:
		listField = "close_stages"
	default:
		return Pipeline{}, ErrInvalidStageType
	}

	if stageType == StageTypeOpen && (req.Won || req.Lost) {
		return Pipeline{}, ErrFlagsOnOpenStage
	}
	if req.Won && req.Lost {
		return Pipeline{}, ErrWonLostExclusive
	}

	color := strings.TrimSpace(req.Color)
	if color == "" {
		color = "#cccccc"
	}

	stage := Stage{
		ID:    uuid.NewString(),
		Name:  strings.TrimSpace(req.Name),
		Color: color,
		Won:   req.Won,
		Lost:  req.Lost,
	}

	updated, err := s.repo.PushStage(ctx, orgID, strings.TrimSpace(id), listField, stage, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pipeline{}, ErrNotFound
		}
		return Pipeline{}, err
	}
	return updated, nil
}

// BulkDeleteStages removes the given stage ids from both lists. Absent ids
// are ignored, so the operation is idempotent.
func (s *Service) BulkDeleteStages(ctx context.Context, orgID, id string, stageIDs []string) error {
	ids := make([]string, 0, len(stageIDs))
	for _, sid := range stageIDs {
		sid = strings.TrimSpace(sid)
		if sid != "" {
			ids = append(ids, sid)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	err := s.repo.PullStages(ctx, orgID, strings.TrimSpace(id), ids, time.Now().In(s.location))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

// AddCustomField appends a field definition. Names are not deduplicated.
func (s *Service) AddCustomField(ctx context.Context, orgID, id string, req AddCustomFieldRequest) (Pipeline, error) {
	fieldType := strings.TrimSpace(req.Type)
	if !IsValidFieldType(fieldType) {
		return Pipeline{}, ErrInvalidFieldType
	}

	field := CustomField{
		ID:      uuid.NewString(),
		Name:    strings.TrimSpace(req.Name),
		Type:    fieldType,
		Options: req.Options,
	}
	if field.Type != FieldTypeMultiSelect {
		field.Options = nil
	}

	updated, err := s.repo.PushCustomField(ctx, orgID, strings.TrimSpace(id), field, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Pipeline{}, ErrNotFound
		}
		return Pipeline{}, err
	}
	return updated, nil
}

// ClassifyStages scans every pipeline of the organization and buckets stage
// ids by close/won/lost membership. Stage lists are small, so the scan stays
// in process while lead counting happens in the database.
func (s *Service) ClassifyStages(ctx context.Context, orgID string) (StageClass, error) {
	pipelines, err := s.repo.List(ctx, orgID)
	if err != nil {
		return StageClass{}, err
	}

	class := StageClass{
		Won:   make(map[string]struct{}),
		Lost:  make(map[string]struct{}),
		Close: make(map[string]struct{}),
	}
	for _, p := range pipelines {
		for _, st := range p.CloseStages {
			class.Close[st.ID] = struct{}{}
			if st.Won {
				class.Won[st.ID] = struct{}{}
			}
			if st.Lost {
				class.Lost[st.ID] = struct{}{}
			}
		}
	}
	return class, nil
}
