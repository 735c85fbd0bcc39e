package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusInactive  EnrollmentStatus = "inactive"
	EnrollmentStatusSuspended EnrollmentStatus = "suspended"
)

// Enrollment links a student to a class. At most one row exists per
// (student, class) pair; re-enrolling reactivates the existing row.
type Enrollment struct {
	ID        string           `db:"id" json:"id"`
	StudentID string           `db:"student_id" json:"student_id"`
	ClassID   string           `db:"class_id" json:"class_id"`
	Status    EnrollmentStatus `db:"status" json:"status"`
	JoinedOn  time.Time        `db:"joined_on" json:"joined_on"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt time.Time        `db:"updated_at" json:"updated_at"`
}

// EnrollmentDetail enriches Enrollment with student and class info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string `db:"student_name" json:"student_name"`
	ClassName   string `db:"class_name" json:"class_name"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	ClassID   string
	Status    EnrollmentStatus
	Page      int
	PageSize  int
}

// BillableEnrollment is an active enrollment joined to its class billing
// configuration for the fee generation pass. Class fields are nullable so a
// dangling class reference surfaces as a skip rather than a scan error.
type BillableEnrollment struct {
	ID           string            `db:"id"`
	StudentID    string            `db:"student_id"`
	ClassID      string            `db:"class_id"`
	FeeAmount    *decimal.Decimal  `db:"fee_amount"`
	FeeCurrency  *string           `db:"fee_currency"`
	FeeFrequency *BillingFrequency `db:"fee_frequency"`
	FeeDueDay    *int              `db:"fee_due_day"`
}
