package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	ListByUser(ctx context.Context, userID string) ([]models.Report, error)
}

type reportFeeReader interface {
	CollectionTotals(ctx context.Context, teacherID string) (collected, due decimal.Decimal, count int, err error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.FeeRecordDetail, error)
}

// GenerateReportRequest describes a report generation payload.
type GenerateReportRequest struct {
	Title string `json:"title"`
}

// ReportService builds and stores collection report snapshots. Reports are
// JSON documents; rendering them to files is out of scope here.
type ReportService struct {
	repo   reportRepository
	fees   reportFeeReader
	logger *zap.Logger
}

// NewReportService constructs ReportService.
func NewReportService(repo reportRepository, fees reportFeeReader, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{repo: repo, fees: fees, logger: logger}
}

// GenerateFeeCollection snapshots the teacher's fee collection state.
func (s *ReportService) GenerateFeeCollection(ctx context.Context, userID string, req GenerateReportRequest) (*models.Report, error) {
	collected, due, count, err := s.fees.CollectionTotals(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate fee totals")
	}
	records, err := s.fees.ListByTeacher(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list fee records")
	}

	details := make([]models.FeeCollectionDetail, 0, len(records))
	for _, record := range records {
		details = append(details, models.FeeCollectionDetail{
			StudentName: record.StudentName,
			ClassName:   record.ClassName,
			Status:      record.Status,
			AmountPaid:  record.AmountPaid,
			AmountDue:   record.Amount,
			DueDate:     record.DueDate,
		})
	}
	summary := models.FeeCollectionSummary{
		TotalCollected: collected,
		TotalDue:       due,
		Outstanding:    due.Sub(collected),
		NumberOfFees:   count,
		FeeDetails:     details,
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode report payload")
	}

	title := req.Title
	if title == "" {
		title = "Fee collection report " + time.Now().UTC().Format("2006-01-02")
	}
	report := &models.Report{
		Title:       title,
		ReportType:  models.ReportTypeFeeCollection,
		Data:        payload,
		GeneratedBy: userID,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist report")
	}
	s.logger.Info("fee collection report generated",
		zap.String("report_id", report.ID),
		zap.Int("fee_records", count))
	return report, nil
}

// Get returns one of the teacher's stored reports.
func (s *ReportService) Get(ctx context.Context, id, userID string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	if report.GeneratedBy != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return report, nil
}

// List returns the teacher's stored reports, newest first.
func (s *ReportService) List(ctx context.Context, userID string) ([]models.Report, error) {
	reports, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return reports, nil
}
