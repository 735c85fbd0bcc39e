package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	"github.com/feeflow/feeflow-api/internal/repository"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type feeRecordRepository interface {
	ExistsForPeriod(ctx context.Context, enrollmentID string, month, year int) (bool, error)
	Create(ctx context.Context, record *models.FeeRecord) error
	FindByID(ctx context.Context, id string) (*models.FeeRecord, error)
	FindDetailByID(ctx context.Context, id string) (*models.FeeRecordDetail, error)
	List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecordDetail, int, error)
	ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, paymentID *string) (*models.FeeRecord, error)
	Waive(ctx context.Context, id string, notes *string) (*models.FeeRecord, error)
	ListReminders(ctx context.Context, feeRecordID string) ([]models.FeeReminder, error)
}

type billableEnrollmentLister interface {
	ListActiveBillable(ctx context.Context) ([]models.BillableEnrollment, error)
}

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	ListByFeeRecord(ctx context.Context, feeRecordID string) ([]models.Payment, error)
}

// GenerateFeesRequest selects the billing period for a generation pass.
type GenerateFeesRequest struct {
	Month int `json:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" validate:"required,min=2000,max=2100"`
}

// RecordPaymentRequest describes a payment posting.
type RecordPaymentRequest struct {
	Amount    decimal.Decimal      `json:"amount" validate:"required"`
	Method    models.PaymentMethod `json:"method" validate:"omitempty,oneof=cash bank_transfer check online other"`
	Reference *string              `json:"reference"`
	Notes     *string              `json:"notes"`
}

// WaiveFeeRequest carries the optional note for a waive action.
type WaiveFeeRequest struct {
	Notes *string `json:"notes"`
}

// GenerationSummary reports the outcome of one generation pass, including
// the records the pass created.
type GenerationSummary struct {
	PeriodMonth int                `json:"period_month"`
	PeriodYear  int                `json:"period_year"`
	Generated   int                `json:"generated"`
	Skipped     int                `json:"skipped"`
	Failed      int                `json:"failed"`
	Records     []models.FeeRecord `json:"records"`
}

// BillingService owns the fee record lifecycle: periodic generation,
// payment posting and waivers.
type BillingService struct {
	fees        feeRecordRepository
	enrollments billableEnrollmentLister
	payments    paymentRepository
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewBillingService constructs BillingService.
func NewBillingService(fees feeRecordRepository, enrollments billableEnrollmentLister, payments paymentRepository, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{
		fees:        fees,
		enrollments: enrollments,
		payments:    payments,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

// billsInMonth reports whether the frequency raises a fee in the given
// calendar month. Weekly and unrecognised frequencies never bill; the
// monthly pass has no sub-month cadence to anchor them to.
func billsInMonth(freq models.BillingFrequency, month time.Month) bool {
	switch freq {
	case models.FrequencyMonthly:
		return true
	case models.FrequencyQuarterly:
		return month == time.January || month == time.April || month == time.July || month == time.October
	case models.FrequencyYearly:
		return month == time.January
	default:
		return false
	}
}

// dueDateFor places the due day inside the billing period. Out-of-range
// days roll over per time.Date normalisation (Feb 31 becomes Mar 3).
func dueDateFor(year int, month time.Month, dueDay int) time.Time {
	if dueDay < 1 {
		dueDay = 1
	}
	return time.Date(year, month, dueDay, 0, 0, 0, 0, time.UTC)
}

// GenerateFeesForPeriod runs one generation pass over every active
// enrollment. The pass is idempotent: at most one fee record exists per
// enrollment and period, and re-runs only fill gaps. A failing enrollment
// is logged and counted, never aborts the pass.
func (s *BillingService) GenerateFeesForPeriod(ctx context.Context, req GenerateFeesRequest) (*GenerationSummary, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generation period")
	}
	enrollments, err := s.enrollments.ListActiveBillable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list billable enrollments")
	}

	summary := &GenerationSummary{PeriodMonth: req.Month, PeriodYear: req.Year, Records: []models.FeeRecord{}}
	for _, enrollment := range enrollments {
		record, err := s.ensureFeeRecord(ctx, enrollment, req.Month, req.Year)
		if err != nil {
			summary.Failed++
			s.logger.Error("fee generation failed for enrollment",
				zap.String("enrollment_id", enrollment.ID),
				zap.Int("month", req.Month),
				zap.Int("year", req.Year),
				zap.Error(err))
			continue
		}
		if record != nil {
			summary.Generated++
			summary.Records = append(summary.Records, *record)
		} else {
			summary.Skipped++
		}
	}

	s.metrics.RecordFeesGenerated(summary.Generated)
	s.logger.Info("fee generation pass complete",
		zap.Int("month", req.Month),
		zap.Int("year", req.Year),
		zap.Int("generated", summary.Generated),
		zap.Int("skipped", summary.Skipped),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// EnsureFeeForEnrollment creates the current-period fee record for a single
// enrollment if its class bills this month and no record exists yet. It is
// the same path the generation pass takes, used when enrolling mid-period.
func (s *BillingService) EnsureFeeForEnrollment(ctx context.Context, enrollment models.BillableEnrollment, month, year int) (bool, error) {
	record, err := s.ensureFeeRecord(ctx, enrollment, month, year)
	return record != nil, err
}

// ensureFeeRecord returns the created record, or nil when the period is
// already covered or the enrollment does not bill this month.
func (s *BillingService) ensureFeeRecord(ctx context.Context, enrollment models.BillableEnrollment, month, year int) (*models.FeeRecord, error) {
	// Nil class fields mean the class is inactive or gone; skip quietly.
	if enrollment.FeeAmount == nil || enrollment.FeeCurrency == nil || enrollment.FeeFrequency == nil {
		return nil, nil
	}
	if !billsInMonth(*enrollment.FeeFrequency, time.Month(month)) {
		return nil, nil
	}
	exists, err := s.fees.ExistsForPeriod(ctx, enrollment.ID, month, year)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	dueDay := 1
	if enrollment.FeeDueDay != nil {
		dueDay = *enrollment.FeeDueDay
	}
	record := &models.FeeRecord{
		EnrollmentID: enrollment.ID,
		Amount:       *enrollment.FeeAmount,
		Currency:     *enrollment.FeeCurrency,
		DueDate:      dueDateFor(year, time.Month(month), dueDay),
		PeriodMonth:  month,
		PeriodYear:   year,
		Status:       models.FeeStatusUnpaid,
		AmountPaid:   decimal.Zero,
	}
	if err := s.fees.Create(ctx, record); err != nil {
		// A concurrent pass won the insert; treat as already covered.
		if repository.IsUniqueViolation(err) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

// Get returns a fee record with enrollment context.
func (s *BillingService) Get(ctx context.Context, id string) (*models.FeeRecordDetail, error) {
	detail, err := s.fees.FindDetailByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	return detail, nil
}

// List returns fee records with pagination metadata.
func (s *BillingService) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecordDetail, *models.Pagination, error) {
	records, total, err := s.fees.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee records")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return records, pagination, nil
}

// RecordPayment applies a payment against a fee record. The increment and
// the overpayment check happen in one conditional update so concurrent
// postings can never push amount_paid past the amount due.
func (s *BillingService) RecordPayment(ctx context.Context, feeID string, req RecordPaymentRequest, receivedBy string) (*models.FeeRecord, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment amount must be positive")
	}

	paymentID := uuid.NewString()
	record, err := s.fees.ApplyPayment(ctx, feeID, req.Amount, &paymentID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, s.classifyRejectedPayment(ctx, feeID)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply payment")
	}

	payment := &models.Payment{
		ID:          paymentID,
		FeeRecordID: feeID,
		Amount:      req.Amount,
		PaidAt:      s.now().UTC(),
		Method:      req.Method,
		Reference:   req.Reference,
		ReceivedBy:  receivedBy,
		Notes:       req.Notes,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		// The fee record already reflects the payment; surface the gap.
		s.logger.Error("payment applied but payment row not persisted",
			zap.String("fee_record_id", feeID),
			zap.String("payment_id", paymentID),
			zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist payment")
	}

	s.metrics.RecordPayment()
	s.logger.Info("payment recorded",
		zap.String("fee_record_id", feeID),
		zap.String("payment_id", paymentID),
		zap.String("amount", req.Amount.String()),
		zap.String("status", string(record.Status)))
	return record, nil
}

// classifyRejectedPayment disambiguates a conditional update that matched
// no row: missing record, waived record, or overpayment.
func (s *BillingService) classifyRejectedPayment(ctx context.Context, feeID string) error {
	record, err := s.fees.FindByID(ctx, feeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	if record.Status == models.FeeStatusWaived {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "fee record is waived")
	}
	return appErrors.ErrInvalidAmount
}

// Waive marks a fee record as waived. Fully paid records stay paid.
func (s *BillingService) Waive(ctx context.Context, feeID string, req WaiveFeeRequest) (*models.FeeRecord, error) {
	existing, err := s.fees.FindByID(ctx, feeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	if existing.Status == models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee record already waived")
	}
	if existing.Status == models.FeeStatusPaid {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee record already paid")
	}
	record, err := s.fees.Waive(ctx, feeID, req.Notes)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to waive fee record")
	}
	s.logger.Info("fee record waived", zap.String("fee_record_id", feeID))
	return record, nil
}

// ListPayments returns the payments applied against a fee record.
func (s *BillingService) ListPayments(ctx context.Context, feeID string) ([]models.Payment, error) {
	if _, err := s.fees.FindByID(ctx, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	payments, err := s.payments.ListByFeeRecord(ctx, feeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// ListReminderLog returns a fee record's reminder history.
func (s *BillingService) ListReminderLog(ctx context.Context, feeID string) ([]models.FeeReminder, error) {
	if _, err := s.fees.FindByID(ctx, feeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	reminders, err := s.fees.ListReminders(ctx, feeID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminders")
	}
	return reminders, nil
}
