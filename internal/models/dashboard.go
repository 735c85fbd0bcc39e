package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DashboardSummary aggregates roster and financial totals for one teacher.
type DashboardSummary struct {
	TotalStudents    int             `json:"total_students"`
	TotalClasses     int             `json:"total_classes"`
	TotalCollected   decimal.Decimal `json:"total_collected"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	GeneratedAt      time.Time       `json:"generated_at"`
}
