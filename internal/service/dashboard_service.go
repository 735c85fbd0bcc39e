package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type studentCounter interface {
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
}

type classCounter interface {
	CountByTeacher(ctx context.Context, teacherID string) (int, error)
}

type collectionTotalsReader interface {
	CollectionTotals(ctx context.Context, teacherID string) (collected, due decimal.Decimal, count int, err error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the teacher's summary snapshot.
type DashboardService struct {
	students studentCounter
	classes  classCounter
	fees     collectionTotalsReader
	cache    *CacheService
	logger   *zap.Logger
	now      func() time.Time
	cfg      DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(students studentCounter, classes classCounter, fees collectionTotalsReader, cache *CacheService, cfg DashboardServiceConfig, logger *zap.Logger) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		students: students,
		classes:  classes,
		fees:     fees,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// Summary returns the teacher's dashboard snapshot and indicates whether it
// came from cache.
func (s *DashboardService) Summary(ctx context.Context, teacherID string) (*models.DashboardSummary, bool, error) {
	if teacherID == "" {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	cacheKey := fmt.Sprintf("dash:summary:%s", teacherID)
	if s.cache != nil {
		var cached models.DashboardSummary
		hit, err := s.cache.Get(ctx, cacheKey, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	summary, err := s.compose(ctx, teacherID)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, summary, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	return summary, false, nil
}

// Invalidate drops the cached snapshot for a teacher after a mutation.
func (s *DashboardService) Invalidate(ctx context.Context, teacherID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, fmt.Sprintf("dash:summary:%s", teacherID)); err != nil {
		s.logger.Warn("dashboard cache invalidate failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}

func (s *DashboardService) compose(ctx context.Context, teacherID string) (*models.DashboardSummary, error) {
	totalStudents, err := s.students.CountByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	totalClasses, err := s.classes.CountByTeacher(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count classes")
	}
	collected, due, _, err := s.fees.CollectionTotals(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate fee totals")
	}

	return &models.DashboardSummary{
		TotalStudents:    totalStudents,
		TotalClasses:     totalClasses,
		TotalCollected:   collected,
		TotalOutstanding: due.Sub(collected),
		GeneratedAt:      s.now().UTC(),
	}, nil
}
