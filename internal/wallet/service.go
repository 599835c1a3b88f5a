package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/cache"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrDuplicatePayment  = errors.New("payment already credited")
)

// Organizations mirrors the wallet balance onto the organization document.
// The wallet ledger stays authoritative; the mirror is fixed at read time
// when it drifts, never the other way around.
type Organizations interface {
	GetCredits(ctx context.Context, id string) (int64, error)
	SetCredits(ctx context.Context, id string, credits int64, now time.Time) error
}

type Service struct {
	repo     Repository
	orgs     Organizations
	cache    cache.Cache
	cacheTTL time.Duration
	currency string
	log      *slog.Logger
}

func NewService(repo Repository, orgs Organizations, c cache.Cache, cacheTTL time.Duration, currency string, log *slog.Logger) *Service {
	if currency == "" {
		currency = "INR"
	}
	return &Service{repo: repo, orgs: orgs, cache: c, cacheTTL: cacheTTL, currency: currency, log: log}
}

func cacheKey(orgID string) string {
	return fmt.Sprintf("wallet:balance:%s", orgID)
}

// Balance returns the wallet balance, creating the wallet on first access and
// reconciling the organization credits mirror when it has drifted.
func (s *Service) Balance(ctx context.Context, orgID string) (BalanceResponse, error) {
	var cached BalanceResponse
	if cache.GetJSON(ctx, s.cache, cacheKey(orgID), &cached) {
		return cached, nil
	}

	w, err := s.repo.GetOrCreate(ctx, orgID, s.currency, time.Now())
	if err != nil {
		return BalanceResponse{}, fmt.Errorf("get wallet: %w", err)
	}

	if mirrored, err := s.orgs.GetCredits(ctx, orgID); err == nil && mirrored != w.Balance {
		if err := s.orgs.SetCredits(ctx, orgID, w.Balance, time.Now()); err != nil {
			s.log.Warn("failed to reconcile organization credits", "organization_id", orgID, "error", err)
		}
	}

	resp := BalanceResponse{Balance: w.Balance, Currency: w.Currency}
	s.storeCache(ctx, orgID, resp)
	return resp, nil
}

// Credit adds funds to the wallet. When paymentID is set the credit is
// idempotent: a ledger entry with the same payment id blocks the update.
func (s *Service) Credit(ctx context.Context, orgID string, amount int64, description, paymentID, reference string) (Wallet, error) {
	if _, err := s.repo.GetOrCreate(ctx, orgID, s.currency, time.Now()); err != nil {
		return Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	now := time.Now()
	txn := Transaction{
		ID:          uuid.NewString(),
		Type:        TxnCredit,
		Amount:      amount,
		Description: description,
		PaymentID:   paymentID,
		Reference:   reference,
		CreatedAt:   now,
	}

	filter := bson.M{}
	if paymentID != "" {
		filter["transactions.payment_id"] = bson.M{"$ne": paymentID}
	}

	w, err := s.repo.Apply(ctx, orgID, amount, txn, filter, now)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) && paymentID != "" {
			return Wallet{}, ErrDuplicatePayment
		}
		return Wallet{}, fmt.Errorf("credit wallet: %w", err)
	}

	s.syncAfterWrite(ctx, orgID, w)
	return w, nil
}

// Debit deducts funds, guarding against overdraft in the update filter so
// concurrent debits cannot take the balance negative.
func (s *Service) Debit(ctx context.Context, orgID string, amount int64, description, reference string) (Wallet, error) {
	if _, err := s.repo.GetOrCreate(ctx, orgID, s.currency, time.Now()); err != nil {
		return Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	now := time.Now()
	txn := Transaction{
		ID:          uuid.NewString(),
		Type:        TxnDebit,
		Amount:      amount,
		Description: description,
		Reference:   reference,
		CreatedAt:   now,
	}

	w, err := s.repo.Apply(ctx, orgID, -amount, txn, bson.M{"balance": bson.M{"$gte": amount}}, now)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Wallet{}, ErrInsufficientFunds
		}
		return Wallet{}, fmt.Errorf("debit wallet: %w", err)
	}

	s.syncAfterWrite(ctx, orgID, w)
	return w, nil
}

// Transactions returns the ledger newest first.
func (s *Service) Transactions(ctx context.Context, orgID string) ([]Transaction, error) {
	w, err := s.repo.GetOrCreate(ctx, orgID, s.currency, time.Now())
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	txns := make([]Transaction, len(w.Transactions))
	copy(txns, w.Transactions)
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}
	return txns, nil
}

func (s *Service) syncAfterWrite(ctx context.Context, orgID string, w Wallet) {
	if err := s.orgs.SetCredits(ctx, orgID, w.Balance, time.Now()); err != nil {
		s.log.Warn("failed to sync organization credits", "organization_id", orgID, "error", err)
	}
	s.storeCache(ctx, orgID, BalanceResponse{Balance: w.Balance, Currency: w.Currency})
}

func (s *Service) storeCache(ctx context.Context, orgID string, resp BalanceResponse) {
	if err := cache.SetJSON(ctx, s.cache, cacheKey(orgID), resp, s.cacheTTL); err != nil {
		s.log.Debug("failed to cache wallet balance", "organization_id", orgID, "error", err)
	}
}
