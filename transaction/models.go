package transaction

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the settlement currency of the ledger.
const DefaultCurrency = "ZAR"

// Record is a settled ledger transaction a customer may dispute.
type Record struct {
	ID        string
	UserID    string
	Type      string
	Amount    decimal.Decimal
	Currency  string
	CreatedAt time.Time
}
