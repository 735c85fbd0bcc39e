package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

func dec(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		panic(err)
	}
	return d
}

type mockFeeRepo struct {
	records     map[string]*models.FeeRecord
	created     []*models.FeeRecord
	failCreate  map[string]error
	reminderLog map[string][]models.FeeReminder
	nextID      int
}

func newMockFeeRepo() *mockFeeRepo {
	return &mockFeeRepo{records: map[string]*models.FeeRecord{}}
}

func (m *mockFeeRepo) periodKey(enrollmentID string, month, year int) string {
	return fmt.Sprintf("%s/%d/%d", enrollmentID, month, year)
}

func (m *mockFeeRepo) ExistsForPeriod(ctx context.Context, enrollmentID string, month, year int) (bool, error) {
	for _, r := range m.records {
		if r.EnrollmentID == enrollmentID && r.PeriodMonth == month && r.PeriodYear == year {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockFeeRepo) Create(ctx context.Context, record *models.FeeRecord) error {
	if err, ok := m.failCreate[record.EnrollmentID]; ok {
		return err
	}
	if record.ID == "" {
		m.nextID++
		record.ID = fmt.Sprintf("fee-%d", m.nextID)
	}
	clone := *record
	m.records[record.ID] = &clone
	m.created = append(m.created, &clone)
	return nil
}

func (m *mockFeeRepo) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	if r, ok := m.records[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) FindDetailByID(ctx context.Context, id string) (*models.FeeRecordDetail, error) {
	if r, ok := m.records[id]; ok {
		return &models.FeeRecordDetail{FeeRecord: *r}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFeeRepo) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecordDetail, int, error) {
	var out []models.FeeRecordDetail
	for _, r := range m.records {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, models.FeeRecordDetail{FeeRecord: *r})
	}
	return out, len(out), nil
}

// ApplyPayment mirrors the conditional update: no row is touched when the
// record is missing, waived, or the increment would exceed the amount due.
func (m *mockFeeRepo) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, paymentID *string) (*models.FeeRecord, error) {
	r, ok := m.records[id]
	if !ok || r.Status == models.FeeStatusWaived {
		return nil, sql.ErrNoRows
	}
	if r.AmountPaid.Add(amount).GreaterThan(r.Amount) {
		return nil, sql.ErrNoRows
	}
	r.AmountPaid = r.AmountPaid.Add(amount)
	r.Status = models.DeriveFeeStatus(r.Amount, r.AmountPaid)
	r.PaymentID = paymentID
	clone := *r
	return &clone, nil
}

func (m *mockFeeRepo) Waive(ctx context.Context, id string, notes *string) (*models.FeeRecord, error) {
	r, ok := m.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	r.Status = models.FeeStatusWaived
	if notes != nil {
		r.Notes = notes
	}
	clone := *r
	return &clone, nil
}

func (m *mockFeeRepo) ListReminders(ctx context.Context, feeRecordID string) ([]models.FeeReminder, error) {
	return m.reminderLog[feeRecordID], nil
}

type mockBillableLister struct {
	enrollments []models.BillableEnrollment
	err         error
}

func (m *mockBillableLister) ListActiveBillable(ctx context.Context) ([]models.BillableEnrollment, error) {
	return m.enrollments, m.err
}

type mockPaymentRepo struct {
	created []*models.Payment
	err     error
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, payment)
	return nil
}

func (m *mockPaymentRepo) ListByFeeRecord(ctx context.Context, feeRecordID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, p := range m.created {
		if p.FeeRecordID == feeRecordID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func billable(id string, amount, currency string, freq models.BillingFrequency, dueDay int) models.BillableEnrollment {
	a := dec(amount)
	f := freq
	d := dueDay
	return models.BillableEnrollment{
		ID:           id,
		StudentID:    "stu-" + id,
		ClassID:      "class-" + id,
		FeeAmount:    &a,
		FeeCurrency:  &currency,
		FeeFrequency: &f,
		FeeDueDay:    &d,
	}
}

func newBillingService(fees *mockFeeRepo, lister *mockBillableLister, payments *mockPaymentRepo) *BillingService {
	return NewBillingService(fees, lister, payments, nil, validator.New(), zap.NewNop())
}

func TestGenerateFeesMonthlyBillsEveryMonth(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "100", "USD", models.FrequencyMonthly, 5)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	for month := 1; month <= 12; month++ {
		summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: month, Year: 2026})
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Generated, "month %d", month)
	}
	assert.Len(t, fees.created, 12)
}

func TestGenerateFeesQuarterlyBillsQuarterStarts(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "300", "USD", models.FrequencyQuarterly, 1)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	billed := map[int]bool{}
	for month := 1; month <= 12; month++ {
		summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: month, Year: 2026})
		require.NoError(t, err)
		if summary.Generated > 0 {
			billed[month] = true
		}
	}
	assert.Equal(t, map[int]bool{1: true, 4: true, 7: true, 10: true}, billed)
	assert.Len(t, fees.created, 4)
}

func TestGenerateFeesYearlyBillsJanuaryOnly(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "1200", "USD", models.FrequencyYearly, 15)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	for month := 1; month <= 12; month++ {
		_, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: month, Year: 2026})
		require.NoError(t, err)
	}
	require.Len(t, fees.created, 1)
	assert.Equal(t, 1, fees.created[0].PeriodMonth)
}

func TestGenerateFeesWeeklyNeverBills(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "25", "USD", models.FrequencyWeekly, 1)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	for month := 1; month <= 12; month++ {
		summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: month, Year: 2026})
		require.NoError(t, err)
		assert.Zero(t, summary.Generated)
	}
	assert.Empty(t, fees.created)
}

func TestGenerateFeesIsIdempotent(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "100", "USD", models.FrequencyMonthly, 1)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	first, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Generated)

	second, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 3, Year: 2026})
	require.NoError(t, err)
	assert.Zero(t, second.Generated)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Records)
	assert.Len(t, fees.created, 1)
}

// The summary carries every record the pass created, so callers see the
// new fees without a follow-up query.
func TestGenerateFeesReturnsCreatedRecords(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{
		billable("e1", "100", "USD", models.FrequencyMonthly, 5),
		billable("e2", "80", "USD", models.FrequencyMonthly, 5),
	}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 4, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Generated)
	require.Len(t, summary.Records, 2)

	assert.Equal(t, "e1", summary.Records[0].EnrollmentID)
	assert.NotEmpty(t, summary.Records[0].ID)
	assert.True(t, summary.Records[0].Amount.Equal(dec("100")))
	assert.Equal(t, 4, summary.Records[0].PeriodMonth)
	assert.Equal(t, 2026, summary.Records[0].PeriodYear)
	assert.Equal(t, "e2", summary.Records[1].EnrollmentID)
}

func TestGenerateFeesCopiesBillingConfig(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{billable("e1", "149.50", "EUR", models.FrequencyMonthly, 10)}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	_, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 6, Year: 2026})
	require.NoError(t, err)
	require.Len(t, fees.created, 1)

	record := fees.created[0]
	assert.True(t, record.Amount.Equal(dec("149.50")))
	assert.Equal(t, "EUR", record.Currency)
	assert.Equal(t, models.FeeStatusUnpaid, record.Status)
	assert.True(t, record.AmountPaid.IsZero())
	assert.Equal(t, time.Date(2026, time.June, 10, 0, 0, 0, 0, time.UTC), record.DueDate)
}

func TestGenerateFeesContinuesAfterFailure(t *testing.T) {
	fees := newMockFeeRepo()
	fees.failCreate = map[string]error{"e1": errors.New("insert failed")}
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{
		billable("e1", "100", "USD", models.FrequencyMonthly, 1),
		billable("e2", "100", "USD", models.FrequencyMonthly, 1),
	}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 2, Year: 2026})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Generated)
}

func TestGenerateFeesSkipsDanglingClass(t *testing.T) {
	fees := newMockFeeRepo()
	lister := &mockBillableLister{enrollments: []models.BillableEnrollment{{ID: "e1", StudentID: "s1", ClassID: "gone"}}}
	svc := newBillingService(fees, lister, &mockPaymentRepo{})

	summary, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 2, Year: 2026})
	require.NoError(t, err)
	assert.Zero(t, summary.Generated)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, 1, summary.Skipped)
}

func TestGenerateFeesRejectsInvalidPeriod(t *testing.T) {
	svc := newBillingService(newMockFeeRepo(), &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.GenerateFeesForPeriod(context.Background(), GenerateFeesRequest{Month: 13, Year: 2026})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func seedFee(fees *mockFeeRepo, id, amount, paid string, status models.FeeStatus) {
	fees.records[id] = &models.FeeRecord{
		ID:           id,
		EnrollmentID: "e1",
		Amount:       dec(amount),
		AmountPaid:   dec(paid),
		Currency:     "USD",
		Status:       status,
		PeriodMonth:  1,
		PeriodYear:   2026,
	}
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "0", models.FeeStatusUnpaid)
	payments := &mockPaymentRepo{}
	svc := newBillingService(fees, &mockBillableLister{}, payments)

	record, err := svc.RecordPayment(context.Background(), "fee-1", RecordPaymentRequest{Amount: dec("40"), Method: models.PaymentMethodCash}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPartiallyPaid, record.Status)
	assert.True(t, record.AmountPaid.Equal(dec("40")))

	record, err = svc.RecordPayment(context.Background(), "fee-1", RecordPaymentRequest{Amount: dec("60")}, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusPaid, record.Status)
	assert.True(t, record.AmountPaid.Equal(dec("100")))

	require.Len(t, payments.created, 2)
	assert.Equal(t, "teacher-1", payments.created[0].ReceivedBy)
	assert.Equal(t, record.PaymentID, &payments.created[1].ID)
}

func TestRecordPaymentRejectsOverpayment(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "80", models.FeeStatusPartiallyPaid)
	payments := &mockPaymentRepo{}
	svc := newBillingService(fees, &mockBillableLister{}, payments)

	_, err := svc.RecordPayment(context.Background(), "fee-1", RecordPaymentRequest{Amount: dec("30")}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAmount.Code, appErrors.FromError(err).Code)
	assert.Empty(t, payments.created)

	// The record is untouched.
	record, findErr := fees.FindByID(context.Background(), "fee-1")
	require.NoError(t, findErr)
	assert.True(t, record.AmountPaid.Equal(dec("80")))
}

func TestRecordPaymentNotFound(t *testing.T) {
	svc := newBillingService(newMockFeeRepo(), &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.RecordPayment(context.Background(), "missing", RecordPaymentRequest{Amount: dec("10")}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestRecordPaymentRejectsWaivedRecord(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "0", models.FeeStatusWaived)
	svc := newBillingService(fees, &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.RecordPayment(context.Background(), "fee-1", RecordPaymentRequest{Amount: dec("10")}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestRecordPaymentRejectsNonPositiveAmount(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "0", models.FeeStatusUnpaid)
	svc := newBillingService(fees, &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.RecordPayment(context.Background(), "fee-1", RecordPaymentRequest{Amount: dec("-5")}, "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestWaiveFeeRecord(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "20", models.FeeStatusPartiallyPaid)
	svc := newBillingService(fees, &mockBillableLister{}, &mockPaymentRepo{})

	note := "scholarship"
	record, err := svc.Waive(context.Background(), "fee-1", WaiveFeeRequest{Notes: &note})
	require.NoError(t, err)
	assert.Equal(t, models.FeeStatusWaived, record.Status)
}

func TestWaiveRejectsPaidRecord(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "100", models.FeeStatusPaid)
	svc := newBillingService(fees, &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.Waive(context.Background(), "fee-1", WaiveFeeRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestWaiveRejectsAlreadyWaived(t *testing.T) {
	fees := newMockFeeRepo()
	seedFee(fees, "fee-1", "100", "0", models.FeeStatusWaived)
	svc := newBillingService(fees, &mockBillableLister{}, &mockPaymentRepo{})

	_, err := svc.Waive(context.Background(), "fee-1", WaiveFeeRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}
