package wallet

import "time"

const (
	TxnCredit = "credit"
	TxnDebit  = "debit"
)

// Transaction is one immutable ledger entry. The wallet balance must equal
// the net sum of its transactions; both change in the same update.
type Transaction struct {
	ID          string            `bson:"id" json:"id"`
	Type        string            `bson:"type" json:"type"`
	Amount      int64             `bson:"amount" json:"amount"`
	Description string            `bson:"description" json:"description"`
	PaymentID   string            `bson:"payment_id,omitempty" json:"payment_id,omitempty"`
	Reference   string            `bson:"reference,omitempty" json:"reference,omitempty"`
	Metadata    map[string]string `bson:"metadata,omitempty" json:"metadata,omitempty"`
	CreatedAt   time.Time         `bson:"created_at" json:"created_at"`
}

type Wallet struct {
	ID             string        `bson:"_id,omitempty" json:"id"`
	OrganizationID string        `bson:"organization_id" json:"organization_id"`
	Balance        int64         `bson:"balance" json:"balance"`
	Currency       string        `bson:"currency" json:"currency"`
	Transactions   []Transaction `bson:"transactions" json:"transactions"`
	CreatedAt      time.Time     `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at" json:"updated_at"`
}

type TopUpRequest struct {
	Amount int64 `json:"amount" validate:"required,gt=0"`
}

type BalanceResponse struct {
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}
