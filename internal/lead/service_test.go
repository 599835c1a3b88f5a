package lead

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/pipeline"
)

type fakeRepo struct {
	items map[string]Lead
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]Lead)}
}

func (r *fakeRepo) Create(ctx context.Context, lead Lead) error {
	r.items[lead.ID] = lead
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, orgID, id string) (Lead, error) {
	lead, ok := r.items[id]
	if !ok || lead.OrganizationID != orgID {
		return Lead{}, mongo.ErrNoDocuments
	}
	return lead, nil
}

func (r *fakeRepo) List(ctx context.Context, orgID string, filter ListFilter, limit, offset int64) ([]Lead, error) {
	out := make([]Lead, 0)
	for _, lead := range r.items {
		if lead.OrganizationID == orgID {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (r *fakeRepo) Count(ctx context.Context, orgID string, filter ListFilter) (int64, error) {
	items, _ := r.List(ctx, orgID, filter, 0, 0)
	return int64(len(items)), nil
}

func (r *fakeRepo) AppendTimeline(ctx context.Context, orgID, id string, expectedVersion int64, entry TimelineEntry, set bson.M, now time.Time) (Lead, error) {
	lead, ok := r.items[id]
	if !ok || lead.OrganizationID != orgID || lead.Version != expectedVersion {
		return Lead{}, mongo.ErrNoDocuments
	}
	lead.Timeline = append(lead.Timeline, entry)
	lead.Version++
	lead.UpdatedAt = now
	if set != nil {
		if v, ok := set["stage_id"].(string); ok {
			lead.StageID = v
		}
		if v, ok := set["assignee_id"].(string); ok {
			lead.AssigneeID = v
		}
	}
	r.items[id] = lead
	return lead, nil
}

func (r *fakeRepo) CountByStage(ctx context.Context, orgID string) ([]StageCount, error) {
	buckets := make(map[string]int64)
	for _, lead := range r.items {
		if lead.OrganizationID == orgID {
			buckets[lead.StageID]++
		}
	}
	out := make([]StageCount, 0, len(buckets))
	for id, n := range buckets {
		out = append(out, StageCount{StageID: id, Count: n})
	}
	return out, nil
}

type fakePipelines struct {
	pipelines map[string]pipeline.Pipeline
}

func (p *fakePipelines) Get(ctx context.Context, orgID, id string) (pipeline.Pipeline, error) {
	pl, ok := p.pipelines[id]
	if !ok || pl.OrganizationID != orgID {
		return pipeline.Pipeline{}, pipeline.ErrNotFound
	}
	return pl, nil
}

func (p *fakePipelines) ClassifyStages(ctx context.Context, orgID string) (pipeline.StageClass, error) {
	class := pipeline.StageClass{
		Won:   make(map[string]struct{}),
		Lost:  make(map[string]struct{}),
		Close: make(map[string]struct{}),
	}
	for _, pl := range p.pipelines {
		if pl.OrganizationID != orgID {
			continue
		}
		for _, s := range pl.CloseStages {
			class.Close[s.ID] = struct{}{}
			if s.Won {
				class.Won[s.ID] = struct{}{}
			}
			if s.Lost {
				class.Lost[s.ID] = struct{}{}
			}
		}
	}
	return class, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	pipelines := &fakePipelines{pipelines: map[string]pipeline.Pipeline{
		"p1": {
			ID:             "p1",
			OrganizationID: "org-1",
			Name:           "Sales",
			OpenStages: []pipeline.Stage{
				{ID: "s-new", Name: "New"},
				{ID: "s-neg", Name: "Negotiation"},
			},
			CloseStages: []pipeline.Stage{
				{ID: "s-won", Name: "Won", Won: true},
				{ID: "s-lost", Name: "Lost", Lost: true},
			},
		},
	}}
	return NewService(repo, pipelines, time.UTC), repo
}

func TestCreateSeedsTimeline(t *testing.T) {
	svc, _ := newTestService(t)

	lead, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "s-new",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(lead.Timeline) != 1 {
		t.Fatalf("expected 1 timeline entry, got %d", len(lead.Timeline))
	}
	if lead.Timeline[0].Action != ActionCreated || lead.Timeline[0].Stage != "New" {
		t.Fatalf("unexpected first entry: %+v", lead.Timeline[0])
	}
	if lead.Version != 0 {
		t.Fatalf("new lead must start at version 0, got %d", lead.Version)
	}
	if lead.Source != SourceManual {
		t.Fatalf("expected manual source default, got %q", lead.Source)
	}
}

func TestCreateRejectsForeignStage(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "other-stage",
	})
	if !errors.Is(err, ErrInvalidStage) {
		t.Fatalf("expected ErrInvalidStage, got %v", err)
	}
}

func TestMoveStageAppendsWithoutRewritingHistory(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "s-new",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	moved, err := svc.MoveStage(context.Background(), "org-1", created.ID, "user-2", MoveStageRequest{StageID: "s-neg", Remark: "warming up"})
	if err != nil {
		t.Fatalf("MoveStage error: %v", err)
	}
	if moved.StageID != "s-neg" {
		t.Fatalf("expected stage s-neg, got %q", moved.StageID)
	}
	if len(moved.Timeline) != 2 {
		t.Fatalf("expected 2 timeline entries, got %d", len(moved.Timeline))
	}
	if moved.Timeline[0] != created.Timeline[0] {
		t.Fatalf("prior entry was rewritten: %+v", moved.Timeline[0])
	}
	if moved.Timeline[1].Action != ActionStageMoved || moved.Timeline[1].MovedBy != "user-2" {
		t.Fatalf("unexpected appended entry: %+v", moved.Timeline[1])
	}
	if moved.Version != created.Version+1 {
		t.Fatalf("expected version bump, got %d", moved.Version)
	}

	// The stored document matches what was returned.
	stored := repo.items[created.ID]
	if len(stored.Timeline) != 2 {
		t.Fatalf("stored timeline length %d", len(stored.Timeline))
	}
}

func TestStaleWriteConflicts(t *testing.T) {
	svc, repo := newTestService(t)

	created, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "s-new",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	// Another writer bumps the version between read and write.
	stale := repo.items[created.ID]
	stale.Version++
	repo.items[created.ID] = stale

	_, err = svc.repo.AppendTimeline(context.Background(), "org-1", created.ID, created.Version, TimelineEntry{}, nil, time.Now())
	if !errors.Is(err, mongo.ErrNoDocuments) {
		t.Fatalf("expected no match for stale version, got %v", err)
	}

	_, err = svc.appendGuarded(context.Background(), "org-1", created, TimelineEntry{Action: ActionAssigned}, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestCloseFollowupEntry(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "s-new",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	closed, err := svc.CloseFollowup(context.Background(), "org-1", created.ID, "user-1", "spoke with client")
	if err != nil {
		t.Fatalf("CloseFollowup error: %v", err)
	}
	last := closed.Timeline[len(closed.Timeline)-1]
	if last.Stage != StageFollowupClosed || last.Action != ActionClosed || last.Remark != "spoke with client" {
		t.Fatalf("unexpected closing entry: %+v", last)
	}

	if _, err := svc.CloseFollowup(context.Background(), "org-1", created.ID, "user-1", "  "); !errors.Is(err, ErrRemarkMissing) {
		t.Fatalf("expected ErrRemarkMissing, got %v", err)
	}
}

func TestClosedActionRequiresRemark(t *testing.T) {
	svc, _ := newTestService(t)

	created, err := svc.Create(context.Background(), "org-1", "user-1", CreateRequest{
		Title:       "Acme deal",
		ContactName: "Jane Doe",
		PipelineID:  "p1",
		StageID:     "s-new",
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err = svc.AppendTimelineEntry(context.Background(), "org-1", created.ID, "user-1", TimelineEntryRequest{
		Stage:  "Won",
		Action: ActionClosed,
	})
	if !errors.Is(err, ErrRemarkMissing) {
		t.Fatalf("expected ErrRemarkMissing, got %v", err)
	}
}

func TestReportClassifiesStages(t *testing.T) {
	svc, repo := newTestService(t)

	seed := []struct {
		id    string
		stage string
	}{
		{"l1", "s-new"},
		{"l2", "s-new"},
		{"l3", "s-neg"},
		{"l4", "s-won"},
		{"l5", "s-lost"},
		{"l6", "s-lost"},
	}
	for _, s := range seed {
		repo.items[s.id] = Lead{ID: s.id, OrganizationID: "org-1", PipelineID: "p1", StageID: s.stage}
	}

	report, err := svc.Report(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if report.Total != 6 || report.Open != 3 || report.Won != 1 || report.Lost != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestGetTenantScoped(t *testing.T) {
	svc, repo := newTestService(t)
	repo.items["l1"] = Lead{ID: "l1", OrganizationID: "org-1", PipelineID: "p1", StageID: "s-new"}

	if _, err := svc.Get(context.Background(), "org-2", "l1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound across tenants, got %v", err)
	}

	lead, err := svc.Get(context.Background(), "org-1", "l1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if lead.StageName != "New" {
		t.Fatalf("expected resolved stage name, got %q", lead.StageName)
	}
}
