package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillingFrequency is how often a class raises a fee record.
//
// Note: "weekly" is accepted by the schema but the monthly generation pass
// never bills it; weekly-billed classes produce no records until a cadence
// is defined for them.
type BillingFrequency string

const (
	FrequencyWeekly    BillingFrequency = "weekly"
	FrequencyMonthly   BillingFrequency = "monthly"
	FrequencyQuarterly BillingFrequency = "quarterly"
	FrequencyYearly    BillingFrequency = "yearly"
)

// Class represents a tuition class with its embedded billing configuration.
// Amount and currency are copied onto fee records at generation time, so a
// later change here never rewrites already-generated records.
type Class struct {
	ID           string           `db:"id" json:"id"`
	Name         string           `db:"name" json:"name"`
	Subject      string           `db:"subject" json:"subject"`
	Grade        string           `db:"grade" json:"grade"`
	Description  *string          `db:"description" json:"description,omitempty"`
	TeacherID    string           `db:"teacher_id" json:"teacher_id"`
	Active       bool             `db:"active" json:"active"`
	FeeAmount    decimal.Decimal  `db:"fee_amount" json:"fee_amount"`
	FeeCurrency  string           `db:"fee_currency" json:"fee_currency"`
	FeeFrequency BillingFrequency `db:"fee_frequency" json:"fee_frequency"`
	FeeDueDay    int              `db:"fee_due_day" json:"fee_due_day"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	TeacherID string
	Grade     string
	Search    string
	Active    *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
