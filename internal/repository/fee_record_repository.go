package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/feeflow/feeflow-api/internal/models"
)

// FeeRecordRepository handles persistence of fee records and their
// append-only reminder logs.
type FeeRecordRepository struct {
	db *sqlx.DB
}

// NewFeeRecordRepository constructs the repository.
func NewFeeRecordRepository(db *sqlx.DB) *FeeRecordRepository {
	return &FeeRecordRepository{db: db}
}

const feeColumns = `f.id, f.enrollment_id, f.amount, f.currency, f.due_date, f.period_month, f.period_year,
        f.status, f.amount_paid, f.payment_id, f.notes, f.created_at, f.updated_at`

// IsUniqueViolation reports whether the error is a Postgres unique
// constraint failure, e.g. a concurrent insert for the same period.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ExistsForPeriod checks whether a fee record already covers the period.
func (r *FeeRecordRepository) ExistsForPeriod(ctx context.Context, enrollmentID string, month, year int) (bool, error) {
	const query = `SELECT 1 FROM fee_records WHERE enrollment_id = $1 AND period_month = $2 AND period_year = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, enrollmentID, month, year); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check fee record for period: %w", err)
	}
	return true, nil
}

// Create persists a new fee record. The (enrollment_id, period_month,
// period_year) uniqueness constraint backstops the existence check.
func (r *FeeRecordRepository) Create(ctx context.Context, record *models.FeeRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Status == "" {
		record.Status = models.FeeStatusUnpaid
	}
	const query = `INSERT INTO fee_records (id, enrollment_id, amount, currency, due_date, period_month, period_year,
        status, amount_paid, payment_id, notes, created_at, updated_at)
        VALUES (:id, :enrollment_id, :amount, :currency, :due_date, :period_month, :period_year,
        :status, :amount_paid, :payment_id, :notes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		return fmt.Errorf("create fee record: %w", err)
	}
	return nil
}

// FindByID returns a fee record by its ID.
func (r *FeeRecordRepository) FindByID(ctx context.Context, id string) (*models.FeeRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM fee_records f WHERE f.id = $1`, feeColumns)
	var record models.FeeRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// FindDetailByID returns a fee record with enrollment context.
func (r *FeeRecordRepository) FindDetailByID(ctx context.Context, id string) (*models.FeeRecordDetail, error) {
	query := fmt.Sprintf(`SELECT %s, e.student_id, s.full_name AS student_name, e.class_id, c.name AS class_name
        FROM fee_records f
        JOIN enrollments e ON e.id = f.enrollment_id
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE f.id = $1`, feeColumns)
	var detail models.FeeRecordDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns fee records matching the filter with enrollment context.
func (r *FeeRecordRepository) List(ctx context.Context, filter models.FeeFilter) ([]models.FeeRecordDetail, int, error) {
	base := `FROM fee_records f
JOIN enrollments e ON e.id = f.enrollment_id
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.EnrollmentID != "" {
		conditions = append(conditions, fmt.Sprintf("f.enrollment_id = $%d", len(args)+1))
		args = append(args, filter.EnrollmentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("f.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Month != 0 {
		conditions = append(conditions, fmt.Sprintf("f.period_month = $%d", len(args)+1))
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		conditions = append(conditions, fmt.Sprintf("f.period_year = $%d", len(args)+1))
		args = append(args, filter.Year)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s, e.student_id, s.full_name AS student_name, e.class_id, c.name AS class_name
        %s ORDER BY f.due_date DESC LIMIT %d OFFSET %d`, feeColumns, base+clause, size, offset)

	var records []models.FeeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list fee records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count fee records: %w", err)
	}
	return records, total, nil
}

// ApplyPayment increments amount_paid by the given amount in a single
// conditional update. The WHERE clause rejects overpayment and waived
// records server-side so concurrent postings cannot exceed the amount due.
// sql.ErrNoRows means the record is missing, waived, or the increment would
// overshoot; callers disambiguate with FindByID.
func (r *FeeRecordRepository) ApplyPayment(ctx context.Context, id string, amount decimal.Decimal, paymentID *string) (*models.FeeRecord, error) {
	query := fmt.Sprintf(`UPDATE fee_records f SET
        amount_paid = f.amount_paid + $2,
        status = CASE
            WHEN f.amount_paid + $2 >= f.amount THEN 'paid'
            WHEN f.amount_paid + $2 > 0 THEN 'partially_paid'
            ELSE 'unpaid'
        END,
        payment_id = COALESCE($3, f.payment_id),
        updated_at = $4
        WHERE f.id = $1 AND f.amount_paid + $2 <= f.amount AND f.status <> 'waived'
        RETURNING %s`, feeColumns)
	var record models.FeeRecord
	if err := r.db.GetContext(ctx, &record, query, id, amount, paymentID, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &record, nil
}

// Waive marks a fee record as waived. This is the only path into the
// waived state; generation and payment never set it.
func (r *FeeRecordRepository) Waive(ctx context.Context, id string, notes *string) (*models.FeeRecord, error) {
	query := fmt.Sprintf(`UPDATE fee_records f SET status = 'waived', notes = COALESCE($2, f.notes), updated_at = $3
        WHERE f.id = $1 RETURNING %s`, feeColumns)
	var record models.FeeRecord
	if err := r.db.GetContext(ctx, &record, query, id, notes, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListReminderCandidates returns fee records still owed money with a due
// date at or before the cutoff, joined to the contact details a reminder
// needs and the timestamp of the last logged attempt.
func (r *FeeRecordRepository) ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]models.ReminderCandidate, error) {
	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, c.name AS class_name, s.parent_name, s.parent_email,
        (SELECT MAX(fr.sent_at) FROM fee_reminders fr WHERE fr.fee_record_id = f.id) AS last_reminder_at
        FROM fee_records f
        JOIN enrollments e ON e.id = f.enrollment_id
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE f.status IN ($1, $2, $3) AND f.due_date <= $4
        ORDER BY f.due_date`, feeColumns)
	var candidates []models.ReminderCandidate
	err := r.db.SelectContext(ctx, &candidates, query,
		models.FeeStatusUnpaid, models.FeeStatusPartiallyPaid, models.FeeStatusOverdue, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list reminder candidates: %w", err)
	}
	return candidates, nil
}

// GetReminderCandidate loads a single fee record with the contact details
// and last-attempt timestamp a reminder needs, with no eligibility filter.
func (r *FeeRecordRepository) GetReminderCandidate(ctx context.Context, feeRecordID string) (*models.ReminderCandidate, error) {
	query := fmt.Sprintf(`SELECT %s,
        s.full_name AS student_name, c.name AS class_name, s.parent_name, s.parent_email,
        (SELECT MAX(fr.sent_at) FROM fee_reminders fr WHERE fr.fee_record_id = f.id) AS last_reminder_at
        FROM fee_records f
        JOIN enrollments e ON e.id = f.enrollment_id
        LEFT JOIN students s ON s.id = e.student_id
        LEFT JOIN classes c ON c.id = e.class_id
        WHERE f.id = $1`, feeColumns)
	var candidate models.ReminderCandidate
	if err := r.db.GetContext(ctx, &candidate, query, feeRecordID); err != nil {
		return nil, err
	}
	return &candidate, nil
}

// AppendReminder adds an entry to a fee record's reminder log.
func (r *FeeRecordRepository) AppendReminder(ctx context.Context, reminder *models.FeeReminder) error {
	if reminder.SentAt.IsZero() {
		reminder.SentAt = time.Now().UTC()
	}
	if reminder.Method == "" {
		reminder.Method = "email"
	}
	const query = `INSERT INTO fee_reminders (fee_record_id, sent_at, method, status, response_message)
        VALUES (:fee_record_id, :sent_at, :method, :status, :response_message)`
	if _, err := r.db.NamedExecContext(ctx, query, reminder); err != nil {
		return fmt.Errorf("append fee reminder: %w", err)
	}
	return nil
}

// ListReminders returns a fee record's reminder log in insertion order.
func (r *FeeRecordRepository) ListReminders(ctx context.Context, feeRecordID string) ([]models.FeeReminder, error) {
	const query = `SELECT id, fee_record_id, sent_at, method, status, response_message
        FROM fee_reminders WHERE fee_record_id = $1 ORDER BY id`
	var reminders []models.FeeReminder
	if err := r.db.SelectContext(ctx, &reminders, query, feeRecordID); err != nil {
		return nil, fmt.Errorf("list fee reminders: %w", err)
	}
	return reminders, nil
}

// CollectionTotals aggregates collected and owed amounts across every fee
// record belonging to a teacher's classes.
func (r *FeeRecordRepository) CollectionTotals(ctx context.Context, teacherID string) (collected, due decimal.Decimal, count int, err error) {
	const query = `SELECT COALESCE(SUM(f.amount_paid), 0) AS collected, COALESCE(SUM(f.amount), 0) AS due, COUNT(*) AS count
        FROM fee_records f
        JOIN enrollments e ON e.id = f.enrollment_id
        JOIN classes c ON c.id = e.class_id
        WHERE c.teacher_id = $1`
	var row struct {
		Collected decimal.Decimal `db:"collected"`
		Due       decimal.Decimal `db:"due"`
		Count     int             `db:"count"`
	}
	if err = r.db.GetContext(ctx, &row, query, teacherID); err != nil {
		return decimal.Zero, decimal.Zero, 0, fmt.Errorf("fee collection totals: %w", err)
	}
	return row.Collected, row.Due, row.Count, nil
}

// ListByTeacher returns every fee record under a teacher's classes with
// enrollment context, most recent due date first.
func (r *FeeRecordRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.FeeRecordDetail, error) {
	query := fmt.Sprintf(`SELECT %s, e.student_id, s.full_name AS student_name, e.class_id, c.name AS class_name
        FROM fee_records f
        JOIN enrollments e ON e.id = f.enrollment_id
        LEFT JOIN students s ON s.id = e.student_id
        JOIN classes c ON c.id = e.class_id
        WHERE c.teacher_id = $1
        ORDER BY f.due_date DESC`, feeColumns)
	var records []models.FeeRecordDetail
	if err := r.db.SelectContext(ctx, &records, query, teacherID); err != nil {
		return nil, fmt.Errorf("list fee records by teacher: %w", err)
	}
	return records, nil
}
