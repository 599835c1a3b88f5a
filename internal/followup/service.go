package followup

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/lead"
)

var (
	ErrNotFound     = errors.New("followup not found")
	ErrLeadNotFound = errors.New("lead not found")
	ErrClosed       = errors.New("followup already closed")
)

// Leads is the slice of the lead service the followup service needs.
type Leads interface {
	Get(ctx context.Context, orgID, id string) (lead.Lead, error)
}

type Service struct {
	repo     Repository
	leads    Leads
	location *time.Location
}

func NewService(repo Repository, leads Leads, location *time.Location) *Service {
	return &Service{
		repo:     repo,
		leads:    leads,
		location: location,
	}
}

// Create stores a follow-up for a lead. Reminders are validated one by one;
// a malformed reminder is dropped and reported without failing the request
// or discarding its siblings.
func (s *Service) Create(ctx context.Context, orgID, userID string, req CreateRequest) (Followup, []RejectedReminder, error) {
	if _, err := s.leads.Get(ctx, orgID, strings.TrimSpace(req.LeadID)); err != nil {
		if errors.Is(err, lead.ErrNotFound) {
			return Followup{}, nil, ErrLeadNotFound
		}
		return Followup{}, nil, err
	}

	now := time.Now().In(s.location)

	reminders := make([]Reminder, 0, len(req.Reminders))
	rejected := make([]RejectedReminder, 0)
	for i, input := range req.Reminders {
		reminder, err := buildReminder(uuid.NewString(), input, req.FollowupDate)
		if err != nil {
			rejected = append(rejected, RejectedReminder{Index: i, Reason: err.Error()})
			continue
		}
		reminders = append(reminders, reminder)
	}

	f := Followup{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: orgID,
		LeadID:         strings.TrimSpace(req.LeadID),
		AddedBy:        userID,
		Description:    strings.TrimSpace(req.Description),
		Type:           req.Type,
		FollowupDate:   req.FollowupDate,
		Stage:          StageOpen,
		Remarks:        []Remark{},
		Reminders:      reminders,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, f); err != nil {
		return Followup{}, nil, err
	}
	return f, rejected, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Followup, error) {
	f, err := s.repo.GetByID(ctx, orgID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Followup{}, ErrNotFound
		}
		return Followup{}, err
	}
	return f, nil
}

func (s *Service) ListForLead(ctx context.Context, orgID, leadID string) ([]Followup, error) {
	return s.repo.ListForLead(ctx, orgID, strings.TrimSpace(leadID))
}

func (s *Service) ListMine(ctx context.Context, orgID, userID string) ([]Followup, error) {
	return s.repo.ListMine(ctx, orgID, userID)
}

// Update appends a remark and/or moves the follow-up date. Rescheduling
// recomputes trigger times for the reminders that have not fired yet; sent
// reminders keep their history.
func (s *Service) Update(ctx context.Context, orgID, id string, req UpdateRequest) (Followup, error) {
	f, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Followup{}, err
	}
	if f.Stage == StageClosed {
		return Followup{}, ErrClosed
	}

	now := time.Now().In(s.location)

	if req.FollowupDate != nil && !req.FollowupDate.IsZero() {
		reminders := make([]Reminder, len(f.Reminders))
		copy(reminders, f.Reminders)
		for i := range reminders {
			if reminders[i].Sent || reminders[i].TriggerType == TriggerSpecific {
				continue
			}
			input := ReminderInput{
				NotificationType: reminders[i].NotificationType,
				TriggerType:      reminders[i].TriggerType,
				Value:            reminders[i].Value,
			}
			triggerAt, err := ComputeTriggerTime(input, *req.FollowupDate)
			if err != nil {
				continue
			}
			reminders[i].TriggerAt = triggerAt
		}

		f, err = s.repo.Reschedule(ctx, orgID, f.ID, *req.FollowupDate, reminders, now)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return Followup{}, ErrNotFound
			}
			return Followup{}, err
		}
	}

	if remark := strings.TrimSpace(req.Remark); remark != "" {
		f, err = s.repo.AppendRemark(ctx, orgID, f.ID, Remark{Text: remark, Timestamp: now}, now)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return Followup{}, ErrNotFound
			}
			return Followup{}, err
		}
	}

	return f, nil
}

// Close appends a timestamped remark and marks the follow-up closed.
func (s *Service) Close(ctx context.Context, orgID, id, remark string) (Followup, error) {
	now := time.Now().In(s.location)
	entry := Remark{Text: strings.TrimSpace(remark), Timestamp: now}

	f, err := s.repo.Close(ctx, orgID, strings.TrimSpace(id), entry, now)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Followup{}, ErrNotFound
		}
		return Followup{}, err
	}
	return f, nil
}

func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	err := s.repo.Delete(ctx, orgID, strings.TrimSpace(id))
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
