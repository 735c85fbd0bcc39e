package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/middleware"
	"github.com/feeflow/feeflow-api/internal/models"
	"github.com/feeflow/feeflow-api/internal/service"
)

// feeRepoStub backs one fee record and applies the same conditional update
// semantics as the SQL repository.
type feeRepoStub struct {
	record *models.FeeRecord
}

func (s *feeRepoStub) ExistsForPeriod(ctx context.Context, enrollmentID string, month, year int) (bool, error) {
	return false, nil
}

func (s *feeRepoStub) Create(ctx context.Context, record *models.FeeRecord) error { return nil }

func (s *feeRepoStub) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	if s.record == nil || s.record.ID != id {
		return nil, sql.ErrNoRows
	}
	clone := *s.record
	return &clone, nil
}

func (s *feeRepoStub) FindDetailByID(ctx context.Context, id string) (*models.FeeRecordDetail, error) {
	record, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.FeeRecordDetail{FeeRecord: *record}, nil
}

func (s *feeRepoStub) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecordDetail, int, error) {
	return nil, 0, nil
}

func (s *feeRepoStub) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, paymentID *string) (*models.FeeRecord, error) {
	if s.record == nil || s.record.ID != id || s.record.Status == models.FeeStatusWaived {
		return nil, sql.ErrNoRows
	}
	if s.record.AmountPaid.Add(amount).GreaterThan(s.record.Amount) {
		return nil, sql.ErrNoRows
	}
	s.record.AmountPaid = s.record.AmountPaid.Add(amount)
	s.record.Status = models.DeriveFeeStatus(s.record.Amount, s.record.AmountPaid)
	s.record.PaymentID = paymentID
	clone := *s.record
	return &clone, nil
}

func (s *feeRepoStub) Waive(ctx context.Context, id string, notes *string) (*models.FeeRecord, error) {
	record, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Status = models.FeeStatusWaived
	s.record = record
	clone := *record
	return &clone, nil
}

func (s *feeRepoStub) ListReminders(ctx context.Context, feeRecordID string) ([]models.FeeReminder, error) {
	return nil, nil
}

type enrollmentListerStub struct {
	enrollments []models.BillableEnrollment
}

func (s enrollmentListerStub) ListActiveBillable(ctx context.Context) ([]models.BillableEnrollment, error) {
	return s.enrollments, nil
}

type paymentRepoStub struct {
	created []*models.Payment
}

func (s *paymentRepoStub) Create(ctx context.Context, payment *models.Payment) error {
	s.created = append(s.created, payment)
	return nil
}

func (s *paymentRepoStub) ListByFeeRecord(ctx context.Context, feeRecordID string) ([]models.Payment, error) {
	return nil, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newFeeHandlerFixture(record *models.FeeRecord) (*FeeHandler, *paymentRepoStub) {
	payments := &paymentRepoStub{}
	billing := service.NewBillingService(&feeRepoStub{record: record}, enrollmentListerStub{}, payments, nil, nil, zap.NewNop())
	return NewFeeHandler(billing), payments
}

func unpaidRecord() *models.FeeRecord {
	return &models.FeeRecord{
		ID:           "fee-1",
		EnrollmentID: "enr-1",
		Amount:       decimal.RequireFromString("100"),
		AmountPaid:   decimal.Zero,
		Currency:     "USD",
		Status:       models.FeeStatusUnpaid,
	}
}

func TestFeeHandlerPay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, payments := newFeeHandlerFixture(unpaidRecord())

	c, w := newGinContext(http.MethodPost, "/fees/fee-1/pay", []byte(`{"amount":"40","method":"cash"}`))
	c.Params = gin.Params{{Key: "id", Value: "fee-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1"})

	handler.Pay(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"partially_paid"`)
	require.Len(t, payments.created, 1)
	assert.Equal(t, "teacher-1", payments.created[0].ReceivedBy)
}

func TestFeeHandlerPayOverpayment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerFixture(unpaidRecord())

	c, w := newGinContext(http.MethodPost, "/fees/fee-1/pay", []byte(`{"amount":"150"}`))
	c.Params = gin.Params{{Key: "id", Value: "fee-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1"})

	handler.Pay(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AMOUNT")
}

func TestFeeHandlerPayRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerFixture(unpaidRecord())

	c, w := newGinContext(http.MethodPost, "/fees/fee-1/pay", []byte(`{"amount":"40"}`))
	c.Params = gin.Params{{Key: "id", Value: "fee-1"}}

	handler.Pay(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestFeeHandlerWaiveWithoutBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerFixture(unpaidRecord())

	c, w := newGinContext(http.MethodPost, "/fees/fee-1/waive", nil)
	c.Params = gin.Params{{Key: "id", Value: "fee-1"}}

	handler.Waive(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"waived"`)
}

func TestFeeHandlerGenerateReturnsRecords(t *testing.T) {
	gin.SetMode(gin.TestMode)
	amount := decimal.RequireFromString("120")
	currency := "USD"
	freq := models.FrequencyMonthly
	dueDay := 5
	lister := enrollmentListerStub{enrollments: []models.BillableEnrollment{{
		ID:           "enr-1",
		StudentID:    "stu-1",
		ClassID:      "class-1",
		FeeAmount:    &amount,
		FeeCurrency:  &currency,
		FeeFrequency: &freq,
		FeeDueDay:    &dueDay,
	}}}
	billing := service.NewBillingService(&feeRepoStub{}, lister, &paymentRepoStub{}, nil, nil, zap.NewNop())
	handler := NewFeeHandler(billing)

	c, w := newGinContext(http.MethodPost, "/fees/generate", []byte(`{"month":4,"year":2026}`))

	handler.Generate(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"generated":1`)
	assert.Contains(t, w.Body.String(), `"records":[`)
	assert.Contains(t, w.Body.String(), `"enrollment_id":"enr-1"`)
}

func TestFeeHandlerGetNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newFeeHandlerFixture(nil)

	c, w := newGinContext(http.MethodGet, "/fees/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
