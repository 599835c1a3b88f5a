package lead

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/pipeline"
)

var (
	ErrNotFound      = errors.New("lead not found")
	ErrConflict      = errors.New("lead was modified concurrently")
	ErrInvalidStage  = errors.New("stage does not belong to the lead's pipeline")
	ErrRemarkMissing = errors.New("remark required for a closed action")
)

// Pipelines is the slice of the pipeline service the lead service needs.
type Pipelines interface {
	Get(ctx context.Context, orgID, id string) (pipeline.Pipeline, error)
	ClassifyStages(ctx context.Context, orgID string) (pipeline.StageClass, error)
}

type Service struct {
	repo      Repository
	pipelines Pipelines
	location  *time.Location
}

func NewService(repo Repository, pipelines Pipelines, location *time.Location) *Service {
	return &Service{
		repo:      repo,
		pipelines: pipelines,
		location:  location,
	}
}

func (s *Service) Create(ctx context.Context, orgID, userID string, req CreateRequest) (Lead, error) {
	p, err := s.pipelines.Get(ctx, orgID, req.PipelineID)
	if err != nil {
		if errors.Is(err, pipeline.ErrNotFound) {
			return Lead{}, pipeline.ErrNotFound
		}
		return Lead{}, err
	}

	stage, ok := p.StageByID(strings.TrimSpace(req.StageID))
	if !ok {
		return Lead{}, ErrInvalidStage
	}

	source := strings.ToLower(strings.TrimSpace(req.Source))
	if source == "" {
		source = SourceManual
	}

	now := time.Now().In(s.location)
	lead := Lead{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: orgID,
		Title:          strings.TrimSpace(req.Title),
		ContactName:    strings.TrimSpace(req.ContactName),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		PipelineID:     p.ID,
		StageID:        stage.ID,
		AssigneeID:     strings.TrimSpace(req.AssigneeID),
		Source:         source,
		CustomValues:   req.CustomValues,
		Timeline: []TimelineEntry{{
			Stage:     stage.Name,
			Action:    ActionCreated,
			MovedBy:   userID,
			Timestamp: now,
		}},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, lead); err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Lead, error) {
	lead, err := s.repo.GetByID(ctx, orgID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	s.resolveStageName(ctx, orgID, &lead)
	return lead, nil
}

func (s *Service) List(ctx context.Context, orgID string, filter ListFilter, limit, offset int64) ([]Lead, int64, error) {
	items, err := s.repo.List(ctx, orgID, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.Count(ctx, orgID, filter)
	if err != nil {
		return nil, 0, err
	}
	for i := range items {
		s.resolveStageName(ctx, orgID, &items[i])
	}
	return items, total, nil
}

// MoveStage moves the lead into another stage of its pipeline and records the
// move on the timeline.
func (s *Service) MoveStage(ctx context.Context, orgID, id, userID string, req MoveStageRequest) (Lead, error) {
	lead, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Lead{}, err
	}

	p, err := s.pipelines.Get(ctx, orgID, lead.PipelineID)
	if err != nil {
		return Lead{}, err
	}
	stage, ok := p.StageByID(strings.TrimSpace(req.StageID))
	if !ok {
		return Lead{}, ErrInvalidStage
	}

	entry := TimelineEntry{
		Stage:     stage.Name,
		Action:    ActionStageMoved,
		Remark:    strings.TrimSpace(req.Remark),
		MovedBy:   userID,
		Timestamp: time.Now().In(s.location),
	}
	set := bson.M{"stage_id": stage.ID}

	return s.appendGuarded(ctx, orgID, lead, entry, set)
}

func (s *Service) Assign(ctx context.Context, orgID, id, userID string, req AssignRequest) (Lead, error) {
	lead, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Lead{}, err
	}

	assignee := strings.TrimSpace(req.AssigneeID)
	entry := TimelineEntry{
		Stage:     lead.StageName,
		Action:    ActionAssigned,
		Remark:    "assigned to " + assignee,
		MovedBy:   userID,
		Timestamp: time.Now().In(s.location),
	}
	set := bson.M{"assignee_id": assignee}

	return s.appendGuarded(ctx, orgID, lead, entry, set)
}

// AppendTimelineEntry appends an arbitrary event. A Closed action without a
// remark is rejected.
func (s *Service) AppendTimelineEntry(ctx context.Context, orgID, id, userID string, req TimelineEntryRequest) (Lead, error) {
	remark := strings.TrimSpace(req.Remark)
	if req.Action == ActionClosed && remark == "" {
		return Lead{}, ErrRemarkMissing
	}

	lead, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Lead{}, err
	}

	entry := TimelineEntry{
		Stage:     strings.TrimSpace(req.Stage),
		Action:    strings.TrimSpace(req.Action),
		Remark:    remark,
		MovedBy:   userID,
		Timestamp: time.Now().In(s.location),
	}

	return s.appendGuarded(ctx, orgID, lead, entry, nil)
}

// CloseFollowup records a "Followup Closed" event on the lead timeline.
func (s *Service) CloseFollowup(ctx context.Context, orgID, id, userID, remark string) (Lead, error) {
	remark = strings.TrimSpace(remark)
	if remark == "" {
		return Lead{}, ErrRemarkMissing
	}

	lead, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Lead{}, err
	}

	entry := TimelineEntry{
		Stage:     StageFollowupClosed,
		Action:    ActionClosed,
		Remark:    remark,
		MovedBy:   userID,
		Timestamp: time.Now().In(s.location),
	}

	return s.appendGuarded(ctx, orgID, lead, entry, nil)
}

// Report counts the organization's leads per stage in the database and
// classifies the buckets against pipeline close stages.
func (s *Service) Report(ctx context.Context, orgID string) (Report, error) {
	counts, err := s.repo.CountByStage(ctx, orgID)
	if err != nil {
		return Report{}, err
	}
	class, err := s.pipelines.ClassifyStages(ctx, orgID)
	if err != nil {
		return Report{}, err
	}

	var report Report
	for _, c := range counts {
		report.Total += c.Count
		if _, won := class.Won[c.StageID]; won {
			report.Won += c.Count
			continue
		}
		if _, lost := class.Lost[c.StageID]; lost {
			report.Lost += c.Count
			continue
		}
		report.Open += c.Count
	}
	return report, nil
}

func (s *Service) appendGuarded(ctx context.Context, orgID string, lead Lead, entry TimelineEntry, set bson.M) (Lead, error) {
	updated, err := s.repo.AppendTimeline(ctx, orgID, lead.ID, lead.Version, entry, set, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// No match can mean the document vanished or another writer
			// incremented the version first.
			if _, getErr := s.repo.GetByID(ctx, orgID, lead.ID); getErr == nil {
				return Lead{}, ErrConflict
			}
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	s.resolveStageName(ctx, orgID, &updated)
	return updated, nil
}

func (s *Service) resolveStageName(ctx context.Context, orgID string, lead *Lead) {
	p, err := s.pipelines.Get(ctx, orgID, lead.PipelineID)
	if err != nil {
		return
	}
	if stage, ok := p.StageByID(lead.StageID); ok {
		lead.StageName = stage.Name
	}
}
