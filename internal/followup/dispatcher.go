package followup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/zapllo/crm-backend/internal/organization"
)

const scanBatchSize = 200

// EmailSender delivers reminder emails. Satisfied by notifications.BrevoClient.
type EmailSender interface {
	SendFollowupReminder(ctx context.Context, toEmail, toName, leadTitle, followupType, description string, due time.Time) (string, error)
}

// WhatsAppSender delivers reminder messages. Satisfied by notifications.WhatsAppClient.
type WhatsAppSender interface {
	SendFollowupReminder(toPhone, leadTitle, description string, due time.Time) (string, error)
}

// Users resolves reminder recipients.
type Users interface {
	GetUser(ctx context.Context, orgID, id string) (organization.User, error)
}

// Dispatcher periodically scans for due unsent reminders and delivers them.
// A reminder is claimed with a conditional sent=false update before the send,
// so overlapping scans cannot double-send. A failed delivery releases the
// claim so the next scan retries the reminder.
type Dispatcher struct {
	repo     Repository
	leads    Leads
	users    Users
	email    EmailSender
	whatsapp WhatsAppSender
	log      *slog.Logger
	cron     *cron.Cron
	spec     string
}

func NewDispatcher(repo Repository, leads Leads, users Users, email EmailSender, whatsapp WhatsAppSender, spec string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		leads:    leads,
		users:    users,
		email:    email,
		whatsapp: whatsapp,
		log:      log,
		cron:     cron.New(),
		spec:     spec,
	}
}

func (d *Dispatcher) Start() error {
	_, err := d.cron.AddFunc(d.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Second)
		defer cancel()
		d.RunOnce(ctx, time.Now())
	})
	if err != nil {
		return err
	}
	d.cron.Start()
	d.log.Info("reminder dispatcher started", slog.String("spec", d.spec))
	return nil
}

func (d *Dispatcher) Stop() {
	stopCtx := d.cron.Stop()
	<-stopCtx.Done()
	d.log.Info("reminder dispatcher stopped")
}

// RunOnce performs one scan pass.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) {
	due, err := d.repo.FindDue(ctx, now, scanBatchSize)
	if err != nil {
		d.log.Error("reminder scan failed", slog.String("error", err.Error()))
		return
	}

	for _, f := range due {
		for _, reminder := range f.Reminders {
			if reminder.Sent || reminder.TriggerAt.After(now) {
				continue
			}
			d.dispatch(ctx, f, reminder, now)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, f Followup, reminder Reminder, now time.Time) {
	log := d.log.With(
		slog.String("followup_id", f.ID),
		slog.String("reminder_id", reminder.ID),
		slog.String("channel", reminder.NotificationType),
	)

	claimed, err := d.repo.MarkReminderSent(ctx, f.ID, reminder.ID, now)
	if err != nil {
		log.Error("reminder claim failed", slog.String("error", err.Error()))
		return
	}
	if !claimed {
		return
	}

	if err := d.deliver(ctx, f, reminder); err != nil {
		log.Warn("reminder delivery failed", slog.String("error", err.Error()))
		if resetErr := d.repo.ResetReminder(ctx, f.ID, reminder.ID, now); resetErr != nil {
			log.Error("reminder release failed", slog.String("error", resetErr.Error()))
		}
		return
	}

	log.Info("reminder sent")
}

func (d *Dispatcher) deliver(ctx context.Context, f Followup, reminder Reminder) error {
	user, err := d.users.GetUser(ctx, f.OrganizationID, f.AddedBy)
	if err != nil {
		return fmt.Errorf("recipient lookup: %w", err)
	}

	leadTitle := f.LeadID
	if ld, err := d.leads.Get(ctx, f.OrganizationID, f.LeadID); err == nil {
		leadTitle = ld.Title
	}

	switch reminder.NotificationType {
	case NotifyEmail:
		if d.email == nil {
			return errors.New("email channel not configured")
		}
		_, err := d.email.SendFollowupReminder(ctx, user.Email, user.Name, leadTitle, f.Type, f.Description, f.FollowupDate)
		return err
	case NotifyWhatsApp:
		if d.whatsapp == nil {
			return errors.New("whatsapp channel not configured")
		}
		if user.Phone == "" {
			return errors.New("recipient has no phone")
		}
		_, err := d.whatsapp.SendFollowupReminder(user.Phone, leadTitle, f.Description, f.FollowupDate)
		return err
	default:
		return fmt.Errorf("unknown channel %q", reminder.NotificationType)
	}
}
