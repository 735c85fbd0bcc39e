package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	byID    map[string]*models.Enrollment
	created []*models.Enrollment
	nextID  int
}

func newMockEnrollmentRepo() *mockEnrollmentRepo {
	return &mockEnrollmentRepo{byID: map[string]*models.Enrollment{}}
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	var out []models.EnrollmentDetail
	for _, e := range m.byID {
		out = append(out, models.EnrollmentDetail{Enrollment: *e})
	}
	return out, len(out), nil
}

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.byID[id]; ok {
		clone := *e
		return &clone, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.Enrollment, error) {
	for _, e := range m.byID {
		if e.StudentID == studentID && e.ClassID == classID {
			clone := *e
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	m.nextID++
	enrollment.ID = fmt.Sprintf("enr-%d", m.nextID)
	clone := *enrollment
	m.byID[enrollment.ID] = &clone
	m.created = append(m.created, &clone)
	return nil
}

func (m *mockEnrollmentRepo) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, joinedOn *time.Time) error {
	e, ok := m.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	e.Status = status
	if joinedOn != nil {
		e.JoinedOn = *joinedOn
	}
	return nil
}

type mockStudentReader struct {
	students map[string]*models.Student
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockClassReader struct {
	classes map[string]*models.Class
}

func (m *mockClassReader) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockFeeEnsurer struct {
	calls []models.BillableEnrollment
	month int
	year  int
	err   error
}

func (m *mockFeeEnsurer) EnsureFeeForEnrollment(ctx context.Context, enrollment models.BillableEnrollment, month, year int) (bool, error) {
	m.calls = append(m.calls, enrollment)
	m.month = month
	m.year = year
	if m.err != nil {
		return false, m.err
	}
	return true, nil
}

func enrollmentFixtures() (*mockStudentReader, *mockClassReader) {
	students := &mockStudentReader{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", FullName: "Ana Ruiz", Active: true},
		"stu-2": {ID: "stu-2", FullName: "Ben Cho", Active: false},
	}}
	classes := &mockClassReader{classes: map[string]*models.Class{
		"class-1": {
			ID:           "class-1",
			Name:         "Piano",
			Active:       true,
			FeeAmount:    dec("120"),
			FeeCurrency:  "USD",
			FeeFrequency: models.FrequencyMonthly,
			FeeDueDay:    5,
		},
		"class-2": {ID: "class-2", Name: "Violin", Active: false},
	}}
	return students, classes
}

func TestEnrollCreatesEnrollmentAndCurrentPeriodFee(t *testing.T) {
	repo := newMockEnrollmentRepo()
	students, classes := enrollmentFixtures()
	billing := &mockFeeEnsurer{}
	svc := NewEnrollmentService(repo, students, classes, billing, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.April, 12, 10, 0, 0, 0, time.UTC) }

	enrollment, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "class-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	require.Len(t, repo.created, 1)

	require.Len(t, billing.calls, 1)
	assert.Equal(t, enrollment.ID, billing.calls[0].ID)
	assert.True(t, billing.calls[0].FeeAmount.Equal(dec("120")))
	assert.Equal(t, 4, billing.month)
	assert.Equal(t, 2026, billing.year)
}

func TestEnrollSurvivesImmediateFeeFailure(t *testing.T) {
	repo := newMockEnrollmentRepo()
	students, classes := enrollmentFixtures()
	billing := &mockFeeEnsurer{err: fmt.Errorf("db down")}
	svc := NewEnrollmentService(repo, students, classes, billing, nil, zap.NewNop())

	enrollment, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "class-1"})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
}

func TestEnrollReactivatesInactiveEnrollment(t *testing.T) {
	repo := newMockEnrollmentRepo()
	old := time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC)
	repo.byID["enr-old"] = &models.Enrollment{
		ID:        "enr-old",
		StudentID: "stu-1",
		ClassID:   "class-1",
		Status:    models.EnrollmentStatusInactive,
		JoinedOn:  old,
	}
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(repo, students, classes, &mockFeeEnsurer{}, nil, zap.NewNop())
	rejoined := time.Date(2026, time.April, 12, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return rejoined }

	enrollment, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "class-1"})
	require.NoError(t, err)
	assert.Equal(t, "enr-old", enrollment.ID)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Equal(t, rejoined, enrollment.JoinedOn)
	assert.Empty(t, repo.created)
}

func TestEnrollRejectsActiveDuplicate(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.byID["enr-1"] = &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		ClassID:   "class-1",
		Status:    models.EnrollmentStatusActive,
	}
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(repo, students, classes, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "class-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsInactiveStudent(t *testing.T) {
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(newMockEnrollmentRepo(), students, classes, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-2", ClassID: "class-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsInactiveClass(t *testing.T) {
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(newMockEnrollmentRepo(), students, classes, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "stu-1", ClassID: "class-2"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEnrollUnknownStudentNotFound(t *testing.T) {
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(newMockEnrollmentRepo(), students, classes, nil, nil, zap.NewNop())

	_, err := svc.Enroll(context.Background(), EnrollStudentRequest{StudentID: "ghost", ClassID: "class-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUnenrollDeactivates(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.byID["enr-1"] = &models.Enrollment{
		ID:        "enr-1",
		StudentID: "stu-1",
		ClassID:   "class-1",
		Status:    models.EnrollmentStatusActive,
	}
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(repo, students, classes, nil, nil, zap.NewNop())

	enrollment, err := svc.Unenroll(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusInactive, enrollment.Status)
	assert.Equal(t, models.EnrollmentStatusInactive, repo.byID["enr-1"].Status)
}

func TestUnenrollRequiresActiveEnrollment(t *testing.T) {
	repo := newMockEnrollmentRepo()
	repo.byID["enr-1"] = &models.Enrollment{
		ID:     "enr-1",
		Status: models.EnrollmentStatusInactive,
	}
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(repo, students, classes, nil, nil, zap.NewNop())

	_, err := svc.Unenroll(context.Background(), "enr-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestUnenrollNotFound(t *testing.T) {
	students, classes := enrollmentFixtures()
	svc := NewEnrollmentService(newMockEnrollmentRepo(), students, classes, nil, nil, zap.NewNop())

	_, err := svc.Unenroll(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
