package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
)

type mockCounter struct {
	count int
	calls int
}

func (m *mockCounter) CountByTeacher(ctx context.Context, teacherID string) (int, error) {
	m.calls++
	return m.count, nil
}

type mockTotalsReader struct {
	collected decimal.Decimal
	due       decimal.Decimal
	calls     int
}

func (m *mockTotalsReader) CollectionTotals(ctx context.Context, teacherID string) (decimal.Decimal, decimal.Decimal, int, error) {
	m.calls++
	return m.collected, m.due, 0, nil
}

type mockCacheRepo struct {
	entries map[string][]byte
}

func newMockCacheRepo() *mockCacheRepo {
	return &mockCacheRepo{entries: map[string][]byte{}}
}

func (m *mockCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *mockCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.entries {
		delete(m.entries, key)
	}
	return nil
}

func TestDashboardSummaryComposesTotals(t *testing.T) {
	students := &mockCounter{count: 14}
	classes := &mockCounter{count: 3}
	totals := &mockTotalsReader{collected: dec("350"), due: dec("1200")}
	svc := NewDashboardService(students, classes, totals, nil, DashboardServiceConfig{}, zap.NewNop())

	summary, cached, err := svc.Summary(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 14, summary.TotalStudents)
	assert.Equal(t, 3, summary.TotalClasses)
	assert.True(t, summary.TotalCollected.Equal(dec("350")))
	assert.True(t, summary.TotalOutstanding.Equal(dec("850")))
}

func TestDashboardSummaryCachesSecondRead(t *testing.T) {
	students := &mockCounter{count: 5}
	classes := &mockCounter{count: 2}
	totals := &mockTotalsReader{collected: dec("100"), due: dec("400")}
	cacheSvc := NewCacheService(newMockCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(students, classes, totals, cacheSvc, DashboardServiceConfig{CacheTTL: time.Minute}, zap.NewNop())

	_, cached, err := svc.Summary(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.False(t, cached)

	summary, cached, err := svc.Summary(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 5, summary.TotalStudents)
	assert.Equal(t, 1, totals.calls)
}

func TestDashboardInvalidateForcesRecompute(t *testing.T) {
	students := &mockCounter{count: 5}
	classes := &mockCounter{count: 2}
	totals := &mockTotalsReader{collected: dec("100"), due: dec("400")}
	cacheSvc := NewCacheService(newMockCacheRepo(), nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(students, classes, totals, cacheSvc, DashboardServiceConfig{CacheTTL: time.Minute}, zap.NewNop())

	_, _, err := svc.Summary(context.Background(), "teacher-1")
	require.NoError(t, err)

	svc.Invalidate(context.Background(), "teacher-1")

	_, cached, err := svc.Summary(context.Background(), "teacher-1")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, totals.calls)
}

func TestDashboardSummaryRequiresTeacherID(t *testing.T) {
	svc := NewDashboardService(&mockCounter{}, &mockCounter{}, &mockTotalsReader{}, nil, DashboardServiceConfig{}, zap.NewNop())

	_, _, err := svc.Summary(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
