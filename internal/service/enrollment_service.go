package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type enrollmentRepository interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindByStudentAndClass(ctx context.Context, studentID, classID string) (*models.Enrollment, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus, joinedOn *time.Time) error
}

type studentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type classReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type feeEnsurer interface {
	EnsureFeeForEnrollment(ctx context.Context, enrollment models.BillableEnrollment, month, year int) (bool, error)
}

// EnrollStudentRequest describes an enrollment creation payload.
type EnrollStudentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required"`
}

// EnrollmentService orchestrates enrollment workflows.
type EnrollmentService struct {
	repo      enrollmentRepository
	students  studentReader
	classes   classReader
	billing   feeEnsurer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, students studentReader, classes classReader, billing feeEnsurer, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		repo:      repo,
		students:  students,
		classes:   classes,
		billing:   billing,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns enrollments with pagination metadata.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
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
	return enrollments, pagination, nil
}

// Enroll registers a student to a class. A previously deactivated
// enrollment for the pair is reactivated instead of duplicated. When the
// class bills the current month, the period's fee record is created on the
// spot through the same path the generation pass uses.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollStudentRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enrollment payload")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !student.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "student inactive")
	}
	class, err := s.classes.FindByID(ctx, req.ClassID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if !class.Active {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class inactive")
	}

	enrollment, err := s.repo.FindByStudentAndClass(ctx, req.StudentID, req.ClassID)
	switch {
	case err == nil:
		if enrollment.Status == models.EnrollmentStatusActive {
			return nil, appErrors.Clone(appErrors.ErrConflict, "student already enrolled in class")
		}
		joinedOn := s.now().UTC()
		if err := s.repo.UpdateStatus(ctx, enrollment.ID, models.EnrollmentStatusActive, &joinedOn); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reactivate enrollment")
		}
		enrollment.Status = models.EnrollmentStatusActive
		enrollment.JoinedOn = joinedOn
	case errors.Is(err, sql.ErrNoRows):
		enrollment = &models.Enrollment{
			StudentID: req.StudentID,
			ClassID:   req.ClassID,
			Status:    models.EnrollmentStatusActive,
			JoinedOn:  s.now().UTC(),
		}
		if err := s.repo.Create(ctx, enrollment); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing enrollment")
	}

	if s.billing != nil {
		now := s.now().UTC()
		billable := models.BillableEnrollment{
			ID:           enrollment.ID,
			StudentID:    enrollment.StudentID,
			ClassID:      enrollment.ClassID,
			FeeAmount:    &class.FeeAmount,
			FeeCurrency:  &class.FeeCurrency,
			FeeFrequency: &class.FeeFrequency,
			FeeDueDay:    &class.FeeDueDay,
		}
		if _, err := s.billing.EnsureFeeForEnrollment(ctx, billable, int(now.Month()), now.Year()); err != nil {
			// The enrollment stands; the next generation pass fills the gap.
			s.logger.Warn("immediate fee generation failed",
				zap.String("enrollment_id", enrollment.ID),
				zap.Error(err))
		}
	}

	s.logger.Info("student enrolled",
		zap.String("enrollment_id", enrollment.ID),
		zap.String("student_id", req.StudentID),
		zap.String("class_id", req.ClassID))
	return enrollment, nil
}

// Unenroll deactivates an enrollment. Existing fee records are untouched.
func (s *EnrollmentService) Unenroll(ctx context.Context, id string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "enrollment not active")
	}
	if err := s.repo.UpdateStatus(ctx, id, models.EnrollmentStatusInactive, nil); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update enrollment status")
	}
	enrollment.Status = models.EnrollmentStatusInactive
	s.logger.Info("student unenrolled", zap.String("enrollment_id", id))
	return enrollment, nil
}
