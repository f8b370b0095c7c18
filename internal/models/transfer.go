package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer represents an intent to move money between two accounts
type Transfer struct {
	ID          string
	FromEmail   string
	ToEmail     string
	Amount      decimal.Decimal
	Description string
	CreatedAt   time.Time
}
