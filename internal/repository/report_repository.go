package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/feeflow/feeflow-api/internal/models"
)

// ReportRepository handles persistence of stored report snapshots.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a generated report.
func (r *ReportRepository) Create(ctx context.Context, report *models.Report) error {
	if report.ID == "" {
		report.ID = uuid.NewString()
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO reports (id, title, report_type, data, generated_by, created_at)
        VALUES (:id, :title, :report_type, :data, :generated_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, report); err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	return nil
}

// FindByID returns a report by its ID.
func (r *ReportRepository) FindByID(ctx context.Context, id string) (*models.Report, error) {
	const query = `SELECT id, title, report_type, data, generated_by, created_at FROM reports WHERE id = $1`
	var report models.Report
	if err := r.db.GetContext(ctx, &report, query, id); err != nil {
		return nil, err
	}
	return &report, nil
}

// ListByUser returns the reports a teacher generated, newest first.
func (r *ReportRepository) ListByUser(ctx context.Context, userID string) ([]models.Report, error) {
	const query = `SELECT id, title, report_type, data, generated_by, created_at
        FROM reports WHERE generated_by = $1 ORDER BY created_at DESC`
	var reports []models.Report
	if err := r.db.SelectContext(ctx, &reports, query, userID); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}
