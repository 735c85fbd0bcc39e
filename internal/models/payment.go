package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was received.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodOnline       PaymentMethod = "online"
	PaymentMethodOther        PaymentMethod = "other"
)

// Payment records money applied against a fee record.
type Payment struct {
	ID          string          `db:"id" json:"id"`
	FeeRecordID string          `db:"fee_record_id" json:"fee_record_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	PaidAt      time.Time       `db:"paid_at" json:"paid_at"`
	Method      PaymentMethod   `db:"method" json:"method"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	ReceivedBy  string          `db:"received_by" json:"received_by"`
	Notes       *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
