package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feeflow/feeflow-api/internal/models"
)

// PaymentRepository handles persistence of payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a new payment.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	if payment.Method == "" {
		payment.Method = models.PaymentMethodCash
	}
	const query = `INSERT INTO payments (id, fee_record_id, amount, paid_at, method, reference, received_by, notes, created_at)
        VALUES (:id, :fee_record_id, :amount, :paid_at, :method, :reference, :received_by, :notes, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// ListByFeeRecord returns the payments applied against a fee record,
// oldest first.
func (r *PaymentRepository) ListByFeeRecord(ctx context.Context, feeRecordID string) ([]models.Payment, error) {
	const query = `SELECT id, fee_record_id, amount, paid_at, method, reference, received_by, notes, created_at
        FROM payments WHERE fee_record_id = $1 ORDER BY paid_at`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, feeRecordID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}
