package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

// CreateClassRequest describes a class creation payload.
type CreateClassRequest struct {
	Name         string                  `json:"name" validate:"required"`
	Subject      string                  `json:"subject" validate:"required"`
	Grade        string                  `json:"grade"`
	Description  *string                 `json:"description"`
	FeeAmount    decimal.Decimal         `json:"fee_amount" validate:"required"`
	FeeCurrency  string                  `json:"fee_currency" validate:"required,len=3"`
	FeeFrequency models.BillingFrequency `json:"fee_frequency" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	FeeDueDay    int                     `json:"fee_due_day" validate:"omitempty,min=1,max=31"`
}

// UpdateClassRequest describes a class update payload.
type UpdateClassRequest struct {
	Name         string                  `json:"name" validate:"required"`
	Subject      string                  `json:"subject" validate:"required"`
	Grade        string                  `json:"grade"`
	Description  *string                 `json:"description"`
	Active       *bool                   `json:"active"`
	FeeAmount    decimal.Decimal         `json:"fee_amount" validate:"required"`
	FeeCurrency  string                  `json:"fee_currency" validate:"required,len=3"`
	FeeFrequency models.BillingFrequency `json:"fee_frequency" validate:"omitempty,oneof=weekly monthly quarterly yearly"`
	FeeDueDay    int                     `json:"fee_due_day" validate:"omitempty,min=1,max=31"`
}

// ClassService manages classes and their billing configuration.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
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
	return classes, pagination, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create adds a class owned by the given teacher.
func (s *ClassService) Create(ctx context.Context, req CreateClassRequest, teacherID string) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.FeeAmount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fee amount must not be negative")
	}
	class := &models.Class{
		Name:         req.Name,
		Subject:      req.Subject,
		Grade:        req.Grade,
		Description:  req.Description,
		TeacherID:    teacherID,
		Active:       true,
		FeeAmount:    req.FeeAmount,
		FeeCurrency:  req.FeeCurrency,
		FeeFrequency: req.FeeFrequency,
		FeeDueDay:    req.FeeDueDay,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.logger.Info("class created", zap.String("class_id", class.ID))
	return class, nil
}

// Update rewrites a class's mutable fields. Changing the billing config
// only affects fee records generated from now on.
func (s *ClassService) Update(ctx context.Context, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if req.FeeAmount.IsNegative() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fee amount must not be negative")
	}
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class.Name = req.Name
	class.Subject = req.Subject
	class.Grade = req.Grade
	class.Description = req.Description
	if req.Active != nil {
		class.Active = *req.Active
	}
	class.FeeAmount = req.FeeAmount
	class.FeeCurrency = req.FeeCurrency
	if req.FeeFrequency != "" {
		class.FeeFrequency = req.FeeFrequency
	}
	if req.FeeDueDay != 0 {
		class.FeeDueDay = req.FeeDueDay
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class along with its enrollments and fee records.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}
