package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type mockReportRepo struct {
	byID   map[string]*models.Report
	nextID int
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{byID: map[string]*models.Report{}}
}

func (m *mockReportRepo) Create(ctx context.Context, report *models.Report) error {
	m.nextID++
	report.ID = fmt.Sprintf("rep-%d", m.nextID)
	clone := *report
	m.byID[report.ID] = &clone
	return nil
}

func (m *mockReportRepo) FindByID(ctx context.Context, id string) (*models.Report, error) {
	if r, ok := m.byID[id]; ok {
		clone := *r
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockReportRepo) ListByUser(ctx context.Context, userID string) ([]models.Report, error) {
	var out []models.Report
	for _, r := range m.byID {
		if r.GeneratedBy == userID {
			out = append(out, *r)
		}
	}
	return out, nil
}

type mockReportFeeReader struct {
	collected decimal.Decimal
	due       decimal.Decimal
	count     int
	records   []models.FeeRecordDetail
}

func (m *mockReportFeeReader) CollectionTotals(ctx context.Context, teacherID string) (decimal.Decimal, decimal.Decimal, int, error) {
	return m.collected, m.due, m.count, nil
}

func (m *mockReportFeeReader) ListByTeacher(ctx context.Context, teacherID string) ([]models.FeeRecordDetail, error) {
	return m.records, nil
}

func TestGenerateFeeCollectionSnapshotsTotals(t *testing.T) {
	repo := newMockReportRepo()
	fees := &mockReportFeeReader{
		collected: dec("350"),
		due:       dec("1200"),
		count:     2,
		records: []models.FeeRecordDetail{
			{
				FeeRecord: models.FeeRecord{
					Amount:     dec("600"),
					AmountPaid: dec("350"),
					Status:     models.FeeStatusPartiallyPaid,
					DueDate:    time.Date(2026, time.March, 5, 0, 0, 0, 0, time.UTC),
				},
				StudentName: "Ana Ruiz",
				ClassName:   "Piano",
			},
			{
				FeeRecord: models.FeeRecord{
					Amount:  dec("600"),
					Status:  models.FeeStatusUnpaid,
					DueDate: time.Date(2026, time.April, 5, 0, 0, 0, 0, time.UTC),
				},
				StudentName: "Ben Cho",
				ClassName:   "Violin",
			},
		},
	}
	svc := NewReportService(repo, fees, zap.NewNop())

	report, err := svc.GenerateFeeCollection(context.Background(), "teacher-1", GenerateReportRequest{Title: "March snapshot"})
	require.NoError(t, err)
	assert.Equal(t, "March snapshot", report.Title)
	assert.Equal(t, models.ReportTypeFeeCollection, report.ReportType)
	assert.Equal(t, "teacher-1", report.GeneratedBy)

	var summary models.FeeCollectionSummary
	require.NoError(t, json.Unmarshal(report.Data, &summary))
	assert.True(t, summary.TotalCollected.Equal(dec("350")))
	assert.True(t, summary.Outstanding.Equal(dec("850")))
	assert.Equal(t, 2, summary.NumberOfFees)
	require.Len(t, summary.FeeDetails, 2)
	assert.Equal(t, "Ana Ruiz", summary.FeeDetails[0].StudentName)
}

func TestGenerateFeeCollectionDefaultTitle(t *testing.T) {
	svc := NewReportService(newMockReportRepo(), &mockReportFeeReader{}, zap.NewNop())

	report, err := svc.GenerateFeeCollection(context.Background(), "teacher-1", GenerateReportRequest{})
	require.NoError(t, err)
	assert.Contains(t, report.Title, "Fee collection report")
}

func TestGetReportEnforcesOwnership(t *testing.T) {
	repo := newMockReportRepo()
	fees := &mockReportFeeReader{}
	svc := NewReportService(repo, fees, zap.NewNop())

	report, err := svc.GenerateFeeCollection(context.Background(), "teacher-1", GenerateReportRequest{})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), report.ID, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, report.ID, got.ID)

	_, err = svc.Get(context.Background(), report.ID, "teacher-2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestGetReportNotFound(t *testing.T) {
	svc := NewReportService(newMockReportRepo(), &mockReportFeeReader{}, zap.NewNop())

	_, err := svc.Get(context.Background(), "missing", "teacher-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
