package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FeeStatus is the payment state of a fee record.
//
// "paid", "partially_paid" and "unpaid" are derived from the amounts at
// every write (see DeriveFeeStatus). "waived" is only reachable through the
// explicit administrative waive action; "overdue" is kept for schema
// compatibility and is never set automatically.
type FeeStatus string

const (
	FeeStatusUnpaid        FeeStatus = "unpaid"
	FeeStatusPaid          FeeStatus = "paid"
	FeeStatusPartiallyPaid FeeStatus = "partially_paid"
	FeeStatusOverdue       FeeStatus = "overdue"
	FeeStatusWaived        FeeStatus = "waived"
)

// DeriveFeeStatus computes the payment state from the amounts.
func DeriveFeeStatus(amount, amountPaid decimal.Decimal) FeeStatus {
	switch {
	case amountPaid.GreaterThanOrEqual(amount):
		return FeeStatusPaid
	case amountPaid.GreaterThan(decimal.Zero):
		return FeeStatusPartiallyPaid
	default:
		return FeeStatusUnpaid
	}
}

// FeeRecord is one billing obligation for one enrollment in one calendar
// period. Exactly one record exists per (enrollment, month, year).
type FeeRecord struct {
	ID           string          `db:"id" json:"id"`
	EnrollmentID string          `db:"enrollment_id" json:"enrollment_id"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	DueDate      time.Time       `db:"due_date" json:"due_date"`
	PeriodMonth  int             `db:"period_month" json:"period_month"`
	PeriodYear   int             `db:"period_year" json:"period_year"`
	Status       FeeStatus       `db:"status" json:"status"`
	AmountPaid   decimal.Decimal `db:"amount_paid" json:"amount_paid"`
	PaymentID    *string         `db:"payment_id" json:"payment_id,omitempty"`
	Notes        *string         `db:"notes" json:"notes,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Outstanding returns the amount still due.
func (f *FeeRecord) Outstanding() decimal.Decimal {
	return f.Amount.Sub(f.AmountPaid)
}

// FeeRecordDetail extends FeeRecord with enrollment context for listings.
type FeeRecordDetail struct {
	FeeRecord
	StudentID   string `db:"student_id" json:"student_id"`
	StudentName string `db:"student_name" json:"student_name"`
	ClassID     string `db:"class_id" json:"class_id"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// FeeFilter selects fee records for listings.
type FeeFilter struct {
	EnrollmentID string
	ClassID      string
	StudentID    string
	Status       FeeStatus
	Month        int
	Year         int
	Page         int
	PageSize     int
}

// ReminderStatus records the outcome of one reminder attempt.
type ReminderStatus string

const (
	ReminderStatusSent   ReminderStatus = "sent"
	ReminderStatusFailed ReminderStatus = "failed"
)

// FeeReminder is one entry of a fee record's append-only reminder log.
type FeeReminder struct {
	ID              int64          `db:"id" json:"id"`
	FeeRecordID     string         `db:"fee_record_id" json:"fee_record_id"`
	SentAt          time.Time      `db:"sent_at" json:"sent_at"`
	Method          string         `db:"method" json:"method"`
	Status          ReminderStatus `db:"status" json:"status"`
	ResponseMessage *string        `db:"response_message" json:"response_message,omitempty"`
}

// ReminderCandidate is a fee record eligible for the reminder pass, joined
// to the contact details the message needs and the timestamp of the last
// logged attempt (sent or failed).
type ReminderCandidate struct {
	FeeRecord
	StudentName    *string    `db:"student_name"`
	ClassName      *string    `db:"class_name"`
	ParentName     *string    `db:"parent_name"`
	ParentEmail    *string    `db:"parent_email"`
	LastReminderAt *time.Time `db:"last_reminder_at"`
}
