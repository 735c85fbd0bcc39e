package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feeflow/feeflow-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// List returns enrollments with student and class context.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e
LEFT JOIN students s ON s.id = e.student_id
LEFT JOIN classes c ON c.id = e.class_id`
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("e.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)+1))
		args = append(args, filter.Status)
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

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.class_id, e.status, e.joined_on, e.created_at, e.updated_at,
        s.full_name AS student_name, c.name AS class_name
        %s ORDER BY e.joined_on DESC LIMIT %d OFFSET %d`, base+clause, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// FindByID returns an enrollment by its ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, joined_on, created_at, updated_at FROM enrollments WHERE id = $1`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// FindByStudentAndClass returns the single enrollment row for the pair, if any.
func (r *EnrollmentRepository) FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	const query = `SELECT id, student_id, class_id, status, joined_on, created_at, updated_at
        FROM enrollments WHERE student_id = $1 AND class_id = $2`
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, classID); err != nil {
		return nil, err
	}
	return &enrollment, nil
}

// Create persists a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.JoinedOn.IsZero() {
		enrollment.JoinedOn = now
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = now
	}
	enrollment.UpdatedAt = now
	const query = `INSERT INTO enrollments (id, student_id, class_id, status, joined_on, created_at, updated_at)
        VALUES (:id, :student_id, :class_id, :status, :joined_on, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// UpdateStatus flips the enrollment status; reactivation resets joined_on.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, joinedOn *time.Time) error {
	if joinedOn != nil {
		const query = `UPDATE enrollments SET status = $2, joined_on = $3, updated_at = $4 WHERE id = $1`
		if _, err := r.db.ExecContext(ctx, query, id, status, *joinedOn, time.Now().UTC()); err != nil {
			return fmt.Errorf("update enrollment status: %w", err)
		}
		return nil
	}
	const query = `UPDATE enrollments SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update enrollment status: %w", err)
	}
	return nil
}

// ListActiveBillable returns every active enrollment joined to its class
// billing configuration, the working set of the fee generation pass.
func (r *EnrollmentRepository) ListActiveBillable(ctx context.Context) ([]models.BillableEnrollment, error) {
	const query = `SELECT e.id, e.student_id, e.class_id,
        c.fee_amount, c.fee_currency, c.fee_frequency, c.fee_due_day
        FROM enrollments e
        LEFT JOIN classes c ON c.id = e.class_id AND c.active = TRUE
        WHERE e.status = $1
        ORDER BY e.created_at`
	var enrollments []models.BillableEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, models.EnrollmentStatusActive); err != nil {
		return nil, fmt.Errorf("list billable enrollments: %w", err)
	}
	return enrollments, nil
}
