package followup

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/zapllo/crm-backend/internal/lead"
	"github.com/zapllo/crm-backend/internal/organization"
)

type recordingEmail struct {
	sent []string
	err  error
}

func (r *recordingEmail) SendFollowupReminder(ctx context.Context, toEmail, toName, leadTitle, followupType, description string, due time.Time) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.sent = append(r.sent, toEmail)
	return "msg-1", nil
}

type recordingWhatsApp struct {
	sent []string
}

func (r *recordingWhatsApp) SendFollowupReminder(toPhone, leadTitle, description string, due time.Time) (string, error) {
	r.sent = append(r.sent, toPhone)
	return "SM1", nil
}

type fakeUsers struct{}

func (fakeUsers) GetUser(ctx context.Context, orgID, id string) (organization.User, error) {
	return organization.User{
		ID:             id,
		OrganizationID: orgID,
		Name:           "Jane Doe",
		Email:          "jane@example.com",
		Phone:          "+911234567890",
	}, nil
}

func newTestDispatcher(t *testing.T, repo *fakeRepo, email EmailSender, whatsapp WhatsAppSender) *Dispatcher {
	t.Helper()
	leads := &fakeLeads{leads: map[string]lead.Lead{
		"lead-1": {ID: "lead-1", OrganizationID: "org-1", Title: "Acme deal"},
	}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDispatcher(repo, leads, fakeUsers{}, email, whatsapp, "* * * * *", log)
}

func seedDueFollowup(repo *fakeRepo, now time.Time) {
	repo.items["f1"] = Followup{
		ID:             "f1",
		OrganizationID: "org-1",
		LeadID:         "lead-1",
		AddedBy:        "user-1",
		Type:           TypeCall,
		Stage:          StageOpen,
		FollowupDate:   now.Add(time.Hour),
		Reminders: []Reminder{
			{ID: "r1", NotificationType: NotifyEmail, TriggerType: TriggerHours, Value: 1, TriggerAt: now.Add(-time.Minute)},
			{ID: "r2", NotificationType: NotifyWhatsApp, TriggerType: TriggerMinutes, Value: 30, TriggerAt: now.Add(30 * time.Minute)},
		},
	}
}

func TestRunOnceSendsOnlyDueReminders(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedDueFollowup(repo, now)

	email := &recordingEmail{}
	whatsapp := &recordingWhatsApp{}
	d := newTestDispatcher(t, repo, email, whatsapp)

	d.RunOnce(context.Background(), now)

	if len(email.sent) != 1 || email.sent[0] != "jane@example.com" {
		t.Fatalf("unexpected email deliveries: %v", email.sent)
	}
	if len(whatsapp.sent) != 0 {
		t.Fatalf("future reminder must not fire: %v", whatsapp.sent)
	}

	r1 := repo.items["f1"].Reminders[0]
	if !r1.Sent || r1.SentAt == nil {
		t.Fatalf("due reminder not marked sent: %+v", r1)
	}
	if repo.items["f1"].Reminders[1].Sent {
		t.Fatal("future reminder must stay unsent")
	}
}

func TestRunOnceIsIdempotentAcrossScans(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedDueFollowup(repo, now)

	email := &recordingEmail{}
	d := newTestDispatcher(t, repo, email, &recordingWhatsApp{})

	d.RunOnce(context.Background(), now)
	d.RunOnce(context.Background(), now)
	d.RunOnce(context.Background(), now)

	if len(email.sent) != 1 {
		t.Fatalf("reminder fired %d times, want 1", len(email.sent))
	}
}

func TestSendFailureIsRetriedOnNextScan(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedDueFollowup(repo, now)

	email := &recordingEmail{err: errors.New("provider down")}
	d := newTestDispatcher(t, repo, email, &recordingWhatsApp{})

	d.RunOnce(context.Background(), now)

	if len(email.sent) != 0 {
		t.Fatalf("failed delivery must not be recorded: %v", email.sent)
	}
	if repo.items["f1"].Reminders[0].Sent {
		t.Fatal("failed reminder must be released for the next scan")
	}

	email.err = nil
	d.RunOnce(context.Background(), now)

	if len(email.sent) != 1 || email.sent[0] != "jane@example.com" {
		t.Fatalf("recovered reminder not delivered: %v", email.sent)
	}
	if !repo.items["f1"].Reminders[0].Sent {
		t.Fatal("delivered reminder must be marked sent")
	}
}

func TestRunOnceSkipsClosedFollowups(t *testing.T) {
	repo := newFakeRepo()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	seedDueFollowup(repo, now)

	f := repo.items["f1"]
	f.Stage = StageClosed
	repo.items["f1"] = f

	email := &recordingEmail{}
	d := newTestDispatcher(t, repo, email, &recordingWhatsApp{})

	d.RunOnce(context.Background(), now)
	if len(email.sent) != 0 {
		t.Fatalf("closed followup must not fire reminders: %v", email.sent)
	}
}
