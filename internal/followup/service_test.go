package followup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/lead"
)

type fakeRepo struct {
	items map[string]Followup
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: make(map[string]Followup)}
}

func (r *fakeRepo) Create(ctx context.Context, f Followup) error {
	r.items[f.ID] = f
	return nil
}

func (r *fakeRepo) GetByID(ctx context.Context, orgID, id string) (Followup, error) {
	f, ok := r.items[id]
	if !ok || f.OrganizationID != orgID {
		return Followup{}, mongo.ErrNoDocuments
	}
	return f, nil
}

func (r *fakeRepo) ListForLead(ctx context.Context, orgID, leadID string) ([]Followup, error) {
	out := make([]Followup, 0)
	for _, f := range r.items {
		if f.OrganizationID == orgID && f.LeadID == leadID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepo) ListMine(ctx context.Context, orgID, userID string) ([]Followup, error) {
	out := make([]Followup, 0)
	for _, f := range r.items {
		if f.OrganizationID == orgID && f.AddedBy == userID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepo) AppendRemark(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error) {
	f, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return Followup{}, err
	}
	f.Remarks = append(f.Remarks, remark)
	f.UpdatedAt = now
	r.items[id] = f
	return f, nil
}

func (r *fakeRepo) Reschedule(ctx context.Context, orgID, id string, followupDate time.Time, reminders []Reminder, now time.Time) (Followup, error) {
	f, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return Followup{}, err
	}
	f.FollowupDate = followupDate
	f.Reminders = reminders
	f.UpdatedAt = now
	r.items[id] = f
	return f, nil
}

func (r *fakeRepo) Close(ctx context.Context, orgID, id string, remark Remark, now time.Time) (Followup, error) {
	f, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return Followup{}, err
	}
	f.Remarks = append(f.Remarks, remark)
	f.Stage = StageClosed
	f.UpdatedAt = now
	r.items[id] = f
	return f, nil
}

func (r *fakeRepo) Delete(ctx context.Context, orgID, id string) error {
	if _, err := r.GetByID(ctx, orgID, id); err != nil {
		return err
	}
	delete(r.items, id)
	return nil
}

func (r *fakeRepo) FindDue(ctx context.Context, now time.Time, limit int64) ([]Followup, error) {
	out := make([]Followup, 0)
	for _, f := range r.items {
		if f.Stage != StageOpen {
			continue
		}
		for _, rem := range f.Reminders {
			if !rem.Sent && !rem.TriggerAt.After(now) {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

func (r *fakeRepo) MarkReminderSent(ctx context.Context, followupID, reminderID string, sentAt time.Time) (bool, error) {
	f, ok := r.items[followupID]
	if !ok {
		return false, nil
	}
	for i := range f.Reminders {
		if f.Reminders[i].ID == reminderID && !f.Reminders[i].Sent {
			f.Reminders[i].Sent = true
			at := sentAt
			f.Reminders[i].SentAt = &at
			r.items[followupID] = f
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) ResetReminder(ctx context.Context, followupID, reminderID string, now time.Time) error {
	f, ok := r.items[followupID]
	if !ok {
		return nil
	}
	for i := range f.Reminders {
		if f.Reminders[i].ID == reminderID {
			f.Reminders[i].Sent = false
			f.Reminders[i].SentAt = nil
			r.items[followupID] = f
			return nil
		}
	}
	return nil
}

type fakeLeads struct {
	leads map[string]lead.Lead
}

func (l *fakeLeads) Get(ctx context.Context, orgID, id string) (lead.Lead, error) {
	ld, ok := l.leads[id]
	if !ok || ld.OrganizationID != orgID {
		return lead.Lead{}, lead.ErrNotFound
	}
	return ld, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	leads := &fakeLeads{leads: map[string]lead.Lead{
		"lead-1": {ID: "lead-1", OrganizationID: "org-1", Title: "Acme deal"},
	}}
	return NewService(repo, leads, time.UTC), repo
}

func TestCreateRejectsBadRemindersIndividually(t *testing.T) {
	svc, _ := newTestService(t)
	due := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	req := CreateRequest{
		LeadID:       "lead-1",
		Description:  "call about renewal",
		Type:         TypeCall,
		FollowupDate: due,
		Reminders: []ReminderInput{
			{NotificationType: NotifyEmail, TriggerType: TriggerHours, Value: 2},
			{NotificationType: NotifyEmail, TriggerType: TriggerMinutes},
			{NotificationType: "pager", TriggerType: TriggerHours, Value: 1},
			{NotificationType: NotifyWhatsApp, TriggerType: TriggerDays, Value: 1},
		},
	}

	f, rejected, err := svc.Create(context.Background(), "org-1", "user-1", req)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(f.Reminders) != 2 {
		t.Fatalf("expected 2 accepted reminders, got %d", len(f.Reminders))
	}
	if len(rejected) != 2 {
		t.Fatalf("expected 2 rejected reminders, got %d", len(rejected))
	}
	if rejected[0].Index != 1 || rejected[1].Index != 2 {
		t.Fatalf("unexpected rejected indexes: %+v", rejected)
	}
	if f.Stage != StageOpen {
		t.Fatalf("new followup must be open, got %q", f.Stage)
	}
	if !f.Reminders[0].TriggerAt.Equal(due.Add(-2 * time.Hour)) {
		t.Fatalf("unexpected trigger time: %v", f.Reminders[0].TriggerAt)
	}
}

func TestCreateUnknownLead(t *testing.T) {
	svc, _ := newTestService(t)

	req := CreateRequest{
		LeadID:       "missing",
		Description:  "x",
		Type:         TypeCall,
		FollowupDate: time.Now(),
	}
	if _, _, err := svc.Create(context.Background(), "org-1", "user-1", req); !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("expected ErrLeadNotFound, got %v", err)
	}
}

func TestUpdateRescheduleRecomputesUnsentTriggers(t *testing.T) {
	svc, repo := newTestService(t)
	due := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	specificDate := time.Date(2026, 3, 30, 8, 0, 0, 0, time.UTC)
	sentAt := due.Add(-48 * time.Hour)

	repo.items["f1"] = Followup{
		ID:             "f1",
		OrganizationID: "org-1",
		LeadID:         "lead-1",
		Stage:          StageOpen,
		FollowupDate:   due,
		Reminders: []Reminder{
			{ID: "r1", NotificationType: NotifyEmail, TriggerType: TriggerHours, Value: 2, TriggerAt: due.Add(-2 * time.Hour)},
			{ID: "r2", NotificationType: NotifyEmail, TriggerType: TriggerSpecific, Date: &specificDate, TriggerAt: specificDate},
			{ID: "r3", NotificationType: NotifyEmail, TriggerType: TriggerDays, Value: 1, TriggerAt: due.AddDate(0, 0, -1), Sent: true, SentAt: &sentAt},
		},
	}

	newDue := time.Date(2026, 4, 5, 10, 0, 0, 0, time.UTC)
	f, err := svc.Update(context.Background(), "org-1", "f1", UpdateRequest{FollowupDate: &newDue})
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if !f.Reminders[0].TriggerAt.Equal(newDue.Add(-2 * time.Hour)) {
		t.Fatalf("relative reminder not rescheduled: %v", f.Reminders[0].TriggerAt)
	}
	if !f.Reminders[1].TriggerAt.Equal(specificDate) {
		t.Fatalf("specific reminder must keep its date: %v", f.Reminders[1].TriggerAt)
	}
	if !f.Reminders[2].TriggerAt.Equal(due.AddDate(0, 0, -1)) {
		t.Fatalf("sent reminder must keep its trigger: %v", f.Reminders[2].TriggerAt)
	}
}

func TestUpdateClosedFollowup(t *testing.T) {
	svc, repo := newTestService(t)
	repo.items["f1"] = Followup{ID: "f1", OrganizationID: "org-1", Stage: StageClosed}

	if _, err := svc.Update(context.Background(), "org-1", "f1", UpdateRequest{Remark: "late"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestCloseAppendsRemarkAndClosesStage(t *testing.T) {
	svc, repo := newTestService(t)
	repo.items["f1"] = Followup{ID: "f1", OrganizationID: "org-1", Stage: StageOpen}

	f, err := svc.Close(context.Background(), "org-1", "f1", "done over phone")
	if err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if f.Stage != StageClosed {
		t.Fatalf("expected closed stage, got %q", f.Stage)
	}
	if len(f.Remarks) != 1 || f.Remarks[0].Text != "done over phone" {
		t.Fatalf("unexpected remarks: %+v", f.Remarks)
	}
}

func TestDeleteTenantScoped(t *testing.T) {
	svc, repo := newTestService(t)
	repo.items["f1"] = Followup{ID: "f1", OrganizationID: "org-1"}

	if err := svc.Delete(context.Background(), "org-2", "f1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for wrong org, got %v", err)
	}
	if err := svc.Delete(context.Background(), "org-1", "f1"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
}
