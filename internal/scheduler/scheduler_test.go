package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/service"
	"github.com/feeflow/feeflow-api/pkg/config"
)

type mockFeeGenerator struct {
	requests []service.GenerateFeesRequest
	err      error
}

func (m *mockFeeGenerator) GenerateFeesForPeriod(ctx context.Context, req service.GenerateFeesRequest) (*service.GenerationSummary, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &service.GenerationSummary{PeriodMonth: req.Month, PeriodYear: req.Year}, nil
}

type mockReminderRunner struct {
	runs int
}

func (m *mockReminderRunner) SendDueReminders(ctx context.Context) (*service.ReminderSummary, error) {
	m.runs++
	return &service.ReminderSummary{}, nil
}

func TestStartRejectsInvalidCronSpec(t *testing.T) {
	s := New(&mockFeeGenerator{}, &mockReminderRunner{}, config.BillingConfig{
		GenerationCron: "not a cron spec",
		ReminderCron:   "0 8 * * *",
	}, zap.NewNop())

	err := s.Start()
	require.Error(t, err)
}

func TestStartAndStop(t *testing.T) {
	s := New(&mockFeeGenerator{}, &mockReminderRunner{}, config.BillingConfig{
		GenerationCron: "0 2 1 * *",
		ReminderCron:   "0 8 * * *",
	}, zap.NewNop())

	require.NoError(t, s.Start())
	s.Stop()
}

func TestGenerationJobBillsCurrentMonth(t *testing.T) {
	billing := &mockFeeGenerator{}
	s := New(billing, &mockReminderRunner{}, config.BillingConfig{}, zap.NewNop())
	s.now = func() time.Time { return time.Date(2026, time.July, 1, 2, 0, 0, 0, time.UTC) }

	s.runGeneration()

	require.Len(t, billing.requests, 1)
	assert.Equal(t, 7, billing.requests[0].Month)
	assert.Equal(t, 2026, billing.requests[0].Year)
}

func TestReminderJobRunsPass(t *testing.T) {
	reminders := &mockReminderRunner{}
	s := New(&mockFeeGenerator{}, reminders, config.BillingConfig{}, zap.NewNop())

	s.runReminders()

	assert.Equal(t, 1, reminders.runs)
}
