package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const TransferCompletedTopic = "transfer_completed"

type TransferCompleted struct {
	TransferID  string          `json:"transfer_id"`
	FromEmail   string          `json:"from_email"`
	ToEmail     string          `json:"to_email"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	OccurredAt  time.Time       `json:"occurred_at"`
}
