package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType enumerates supported report kinds.
type ReportType string

const ReportTypeFeeCollection ReportType = "fee_collection"

// Report is a stored summary snapshot. Data is an opaque JSON document;
// rendering to CSV/PDF is deliberately not part of this service.
type Report struct {
	ID          string          `db:"id" json:"id"`
	Title       string          `db:"title" json:"title"`
	ReportType  ReportType      `db:"report_type" json:"report_type"`
	Data        json.RawMessage `db:"data" json:"data"`
	GeneratedBy string          `db:"generated_by" json:"generated_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// FeeCollectionSummary is the payload stored for fee_collection reports.
type FeeCollectionSummary struct {
	TotalCollected decimal.Decimal       `json:"total_collected"`
	TotalDue       decimal.Decimal       `json:"total_due"`
	Outstanding    decimal.Decimal       `json:"outstanding"`
	NumberOfFees   int                   `json:"number_of_fees"`
	FeeDetails     []FeeCollectionDetail `json:"fee_details"`
}

// FeeCollectionDetail is one row of a fee collection report.
type FeeCollectionDetail struct {
	StudentName string          `json:"student_name"`
	ClassName   string          `json:"class_name"`
	Status      FeeStatus       `json:"status"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
	AmountDue   decimal.Decimal `json:"amount_due"`
	DueDate     time.Time       `json:"due_date"`
}
