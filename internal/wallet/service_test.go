package wallet

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/zapllo/crm-backend/internal/cache"
)

type fakeRepo struct {
	byOrg map[string]Wallet
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byOrg: make(map[string]Wallet)}
}

func (r *fakeRepo) GetOrCreate(ctx context.Context, orgID, currency string, now time.Time) (Wallet, error) {
	if w, ok := r.byOrg[orgID]; ok {
		return w, nil
	}
	w := Wallet{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		Balance:        0,
		Currency:       currency,
		Transactions:   []Transaction{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.byOrg[orgID] = w
	return w, nil
}

func (r *fakeRepo) Get(ctx context.Context, orgID string) (Wallet, error) {
	w, ok := r.byOrg[orgID]
	if !ok {
		return Wallet{}, mongo.ErrNoDocuments
	}
	return w, nil
}

func (r *fakeRepo) Apply(ctx context.Context, orgID string, delta int64, txn Transaction, extraFilter bson.M, now time.Time) (Wallet, error) {
	w, ok := r.byOrg[orgID]
	if !ok {
		return Wallet{}, mongo.ErrNoDocuments
	}

	if cond, ok := extraFilter["balance"].(bson.M); ok {
		if min, ok := cond["$gte"].(int64); ok && w.Balance < min {
			return Wallet{}, mongo.ErrNoDocuments
		}
	}
	if cond, ok := extraFilter["transactions.payment_id"].(bson.M); ok {
		if pid, ok := cond["$ne"].(string); ok {
			for _, existing := range w.Transactions {
				if existing.PaymentID == pid {
					return Wallet{}, mongo.ErrNoDocuments
				}
			}
		}
	}

	w.Balance += delta
	w.Transactions = append(w.Transactions, txn)
	w.UpdatedAt = now
	r.byOrg[orgID] = w
	return w, nil
}

type fakeOrgs struct {
	credits map[string]int64
}

func (o *fakeOrgs) GetCredits(ctx context.Context, id string) (int64, error) {
	return o.credits[id], nil
}

func (o *fakeOrgs) SetCredits(ctx context.Context, id string, credits int64, now time.Time) error {
	o.credits[id] = credits
	return nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeOrgs) {
	t.Helper()
	repo := newFakeRepo()
	orgs := &fakeOrgs{credits: make(map[string]int64)}
	svc := NewService(repo, orgs, cache.NewNoop(), 30*time.Second, "INR", newTestLogger())
	return svc, repo, orgs
}

func TestBalanceCreatesWalletOnFirstAccess(t *testing.T) {
	svc, repo, _ := newTestService(t)

	resp, err := svc.Balance(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Balance)
	assert.Equal(t, "INR", resp.Currency)

	// A second read reuses the same wallet document.
	first := repo.byOrg["org-1"].ID
	_, err = svc.Balance(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, first, repo.byOrg["org-1"].ID)
	assert.Len(t, repo.byOrg, 1)
}

func TestBalanceReconcilesOrganizationCredits(t *testing.T) {
	svc, repo, orgs := newTestService(t)

	_, err := svc.Credit(context.Background(), "org-1", 700, "promo", "", "")
	require.NoError(t, err)

	// Drift the mirror; the wallet stays authoritative.
	orgs.credits["org-1"] = 9999

	resp, err := svc.Balance(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, int64(700), resp.Balance)
	assert.Equal(t, int64(700), orgs.credits["org-1"])
	assert.Equal(t, int64(700), repo.byOrg["org-1"].Balance)
}

func TestCreditAppendsLedgerEntry(t *testing.T) {
	svc, repo, orgs := newTestService(t)

	w, err := svc.Credit(context.Background(), "org-1", 500, "signup bonus", "", "")
	require.NoError(t, err)
	assert.Equal(t, int64(500), w.Balance)
	require.Len(t, w.Transactions, 1)
	assert.Equal(t, TxnCredit, w.Transactions[0].Type)
	assert.Equal(t, int64(500), w.Transactions[0].Amount)

	assert.Equal(t, int64(500), orgs.credits["org-1"])
	assert.Equal(t, int64(500), repo.byOrg["org-1"].Balance)
}

func TestCreditIdempotentPerPayment(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Credit(context.Background(), "org-1", 1000, "top-up", "pi_123", "")
	require.NoError(t, err)

	_, err = svc.Credit(context.Background(), "org-1", 1000, "top-up", "pi_123", "")
	assert.ErrorIs(t, err, ErrDuplicatePayment)

	w := repo.byOrg["org-1"]
	assert.Equal(t, int64(1000), w.Balance)
	assert.Len(t, w.Transactions, 1)

	// A different payment id goes through.
	_, err = svc.Credit(context.Background(), "org-1", 250, "top-up", "pi_456", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1250), repo.byOrg["org-1"].Balance)
}

func TestDebitGuardsOverdraft(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Credit(context.Background(), "org-1", 300, "top-up", "", "")
	require.NoError(t, err)

	_, err = svc.Debit(context.Background(), "org-1", 400, "campaign", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(300), repo.byOrg["org-1"].Balance)

	w, err := svc.Debit(context.Background(), "org-1", 300, "campaign", "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), w.Balance)

	_, err = svc.Debit(context.Background(), "org-1", 1, "campaign", "")
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransactionsNewestFirst(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Credit(context.Background(), "org-1", 100, "first", "", "")
	require.NoError(t, err)
	_, err = svc.Credit(context.Background(), "org-1", 200, "second", "", "")
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), "org-1", 50, "third", "")
	require.NoError(t, err)

	txns, err := svc.Transactions(context.Background(), "org-1")
	require.NoError(t, err)
	require.Len(t, txns, 3)
	assert.Equal(t, "third", txns[0].Description)
	assert.Equal(t, "second", txns[1].Description)
	assert.Equal(t, "first", txns[2].Description)
}

func TestLedgerNetMatchesBalance(t *testing.T) {
	svc, repo, _ := newTestService(t)

	_, err := svc.Credit(context.Background(), "org-1", 1000, "a", "", "")
	require.NoError(t, err)
	_, err = svc.Debit(context.Background(), "org-1", 300, "b", "")
	require.NoError(t, err)
	_, err = svc.Credit(context.Background(), "org-1", 50, "c", "", "")
	require.NoError(t, err)

	w := repo.byOrg["org-1"]
	var net int64
	for _, txn := range w.Transactions {
		switch txn.Type {
		case TxnCredit:
			net += txn.Amount
		case TxnDebit:
			net -= txn.Amount
		}
	}
	assert.Equal(t, w.Balance, net)
}
