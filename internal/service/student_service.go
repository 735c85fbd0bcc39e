package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// CreateStudentRequest describes a student creation payload.
type CreateStudentRequest struct {
	FullName         string               `json:"full_name" validate:"required"`
	Email            *string              `json:"email" validate:"omitempty,email"`
	Phone            *string              `json:"phone"`
	ParentName       string               `json:"parent_name" validate:"required"`
	ParentEmail      string               `json:"parent_email" validate:"omitempty,email"`
	ParentPhone      string               `json:"parent_phone"`
	PreferredContact models.ContactMethod `json:"preferred_contact" validate:"omitempty,oneof=email phone"`
}

// UpdateStudentRequest describes a student update payload.
type UpdateStudentRequest struct {
	FullName         string               `json:"full_name" validate:"required"`
	Email            *string              `json:"email" validate:"omitempty,email"`
	Phone            *string              `json:"phone"`
	ParentName       string               `json:"parent_name" validate:"required"`
	ParentEmail      string               `json:"parent_email" validate:"omitempty,email"`
	ParentPhone      string               `json:"parent_phone"`
	PreferredContact models.ContactMethod `json:"preferred_contact" validate:"omitempty,oneof=email phone"`
	Active           *bool                `json:"active"`
}

// StudentService manages the student roster.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs StudentService.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// List returns students with pagination metadata.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
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
	return students, pagination, nil
}

// Get returns a student by ID.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// Create adds a student to the creator's roster.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest, createdBy string) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		FullName:         req.FullName,
		Email:            req.Email,
		Phone:            req.Phone,
		ParentName:       req.ParentName,
		ParentEmail:      req.ParentEmail,
		ParentPhone:      req.ParentPhone,
		PreferredContact: req.PreferredContact,
		Active:           true,
		CreatedBy:        createdBy,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.logger.Info("student created", zap.String("student_id", student.ID))
	return student, nil
}

// Update rewrites a student's mutable fields.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	student.FullName = req.FullName
	student.Email = req.Email
	student.Phone = req.Phone
	student.ParentName = req.ParentName
	student.ParentEmail = req.ParentEmail
	student.ParentPhone = req.ParentPhone
	if req.PreferredContact != "" {
		student.PreferredContact = req.PreferredContact
	}
	if req.Active != nil {
		student.Active = *req.Active
	}
	if err := s.repo.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// Delete removes a student along with their enrollments and fee records.
func (s *StudentService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	s.logger.Info("student deleted", zap.String("student_id", id))
	return nil
}
