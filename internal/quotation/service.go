package quotation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/lead"
)

const defaultApproveComment = "Approved without comment"

var (
	ErrNotFound          = errors.New("quotation not found")
	ErrLeadNotFound      = errors.New("lead not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Leads is the slice of the lead service the quotation service needs.
type Leads interface {
	Get(ctx context.Context, orgID, id string) (lead.Lead, error)
}

type Service struct {
	repo     Repository
	leads    Leads
	location *time.Location
	// Narrative label appended to the approval log on rejection; the document
	// status itself always becomes "rejected".
	rejectHistoryStatus string
}

func NewService(repo Repository, leads Leads, location *time.Location, rejectHistoryStatus string) *Service {
	if strings.TrimSpace(rejectHistoryStatus) == "" {
		rejectHistoryStatus = "revision_requested"
	}
	return &Service{
		repo:                repo,
		leads:               leads,
		location:            location,
		rejectHistoryStatus: rejectHistoryStatus,
	}
}

func (s *Service) Create(ctx context.Context, orgID, userID string, req CreateRequest) (Quotation, error) {
	if _, err := s.leads.Get(ctx, orgID, strings.TrimSpace(req.LeadID)); err != nil {
		if errors.Is(err, lead.ErrNotFound) {
			return Quotation{}, ErrLeadNotFound
		}
		return Quotation{}, err
	}

	now := time.Now().In(s.location)

	items := make([]LineItem, 0, len(req.Items))
	var total int64
	for _, item := range req.Items {
		items = append(items, LineItem{
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
		total += item.Quantity * item.UnitPrice
	}

	q := Quotation{
		ID:             primitive.NewObjectID().Hex(),
		OrganizationID: orgID,
		LeadID:         strings.TrimSpace(req.LeadID),
		CreatorID:      userID,
		Title:          strings.TrimSpace(req.Title),
		Items:          items,
		Currency:       strings.ToUpper(strings.TrimSpace(req.Currency)),
		Total:          total,
		Status:         StatusDraft,
		ApprovalHistory: []ApprovalEntry{{
			Status:    StatusDraft,
			Comment:   "created",
			UpdatedBy: userID,
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, q); err != nil {
		return Quotation{}, err
	}
	return q, nil
}

func (s *Service) Get(ctx context.Context, orgID, id string) (Quotation, error) {
	q, err := s.repo.GetByID(ctx, orgID, strings.TrimSpace(id))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Quotation{}, ErrNotFound
		}
		return Quotation{}, err
	}
	return q, nil
}

func (s *Service) ListMine(ctx context.Context, orgID, userID string) ([]Quotation, error) {
	return s.repo.ListByCreator(ctx, orgID, userID)
}

func (s *Service) ListForLead(ctx context.Context, orgID, leadID string) ([]Quotation, error) {
	return s.repo.ListForLead(ctx, orgID, strings.TrimSpace(leadID))
}

// Send moves a draft (or rejected, for a revision) quotation to sent.
func (s *Service) Send(ctx context.Context, orgID, id, userID string) (Quotation, error) {
	return s.transition(ctx, orgID, id, StatusSent, ApprovalEntry{
		Status:    StatusSent,
		Comment:   "sent for approval",
		UpdatedBy: userID,
		Timestamp: time.Now().In(s.location),
	})
}

// Approve moves a sent quotation to approved and appends exactly one history
// entry.
func (s *Service) Approve(ctx context.Context, orgID, id, userID, comment string) (Quotation, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		comment = defaultApproveComment
	}
	return s.transition(ctx, orgID, id, StatusApproved, ApprovalEntry{
		Status:    StatusApproved,
		Comment:   comment,
		UpdatedBy: userID,
		Timestamp: time.Now().In(s.location),
	})
}

// Reject moves a sent quotation to rejected. The history entry carries the
// configured narrative label rather than the literal status.
func (s *Service) Reject(ctx context.Context, orgID, id, userID, reason string) (Quotation, error) {
	return s.transition(ctx, orgID, id, StatusRejected, ApprovalEntry{
		Status:    s.rejectHistoryStatus,
		Comment:   strings.TrimSpace(reason),
		UpdatedBy: userID,
		Timestamp: time.Now().In(s.location),
	})
}

func (s *Service) transition(ctx context.Context, orgID, id, toStatus string, entry ApprovalEntry) (Quotation, error) {
	q, err := s.Get(ctx, orgID, id)
	if err != nil {
		return Quotation{}, err
	}

	if !CanTransition(q.Status, toStatus) {
		return Quotation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, toStatus)
	}

	updated, err := s.repo.Transition(ctx, orgID, q.ID, q.Status, toStatus, entry, time.Now().In(s.location))
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// The status moved under us; report it as an invalid transition.
			return Quotation{}, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, toStatus)
		}
		return Quotation{}, err
	}
	return updated, nil
}
