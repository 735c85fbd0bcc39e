package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/feeflow/feeflow-api/internal/models"
	appErrors "github.com/feeflow/feeflow-api/pkg/errors"
	"github.com/feeflow/feeflow-api/pkg/mailer"
)

type reminderFeeRepository interface {
	ListReminderCandidates(ctx context.Context, cutoff time.Time) ([]models.ReminderCandidate, error)
	GetReminderCandidate(ctx context.Context, feeRecordID string) (*models.ReminderCandidate, error)
	AppendReminder(ctx context.Context, reminder *models.FeeReminder) error
}

// ReminderSummary reports the outcome of one reminder pass.
type ReminderSummary struct {
	Eligible int `json:"eligible"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// ReminderServiceConfig tunes the reminder pass.
type ReminderServiceConfig struct {
	// LookaheadDays widens the pass to fees due within this many days.
	LookaheadDays int
	// CooldownDays suppresses a record while its last logged attempt,
	// sent or failed, is younger than this.
	CooldownDays int
}

// ReminderService runs the due-fee reminder pass and single-record sends.
type ReminderService struct {
	fees    reminderFeeRepository
	mail    mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
	cfg     ReminderServiceConfig
	now     func() time.Time
}

// NewReminderService constructs ReminderService.
func NewReminderService(fees reminderFeeRepository, mail mailer.Mailer, metrics *MetricsService, cfg ReminderServiceConfig, logger *zap.Logger) *ReminderService {
	if cfg.LookaheadDays <= 0 {
		cfg.LookaheadDays = 7
	}
	if cfg.CooldownDays <= 0 {
		cfg.CooldownDays = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderService{
		fees:    fees,
		mail:    mail,
		metrics: metrics,
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
	}
}

// SendDueReminders runs one pass over every fee record still owed money
// with a due date inside the lookahead window. Records inside the cooldown
// or with an unresolved student, class or parent email are skipped; a
// delivery failure is logged on the record and counted, never aborts the
// pass.
func (s *ReminderService) SendDueReminders(ctx context.Context) (*ReminderSummary, error) {
	now := s.now().UTC()
	cutoff := now.AddDate(0, 0, s.cfg.LookaheadDays)
	candidates, err := s.fees.ListReminderCandidates(ctx, cutoff)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reminder candidates")
	}

	cooldown := time.Duration(s.cfg.CooldownDays) * 24 * time.Hour
	summary := &ReminderSummary{Eligible: len(candidates)}
	for _, candidate := range candidates {
		if candidate.LastReminderAt != nil && now.Sub(*candidate.LastReminderAt) < cooldown {
			summary.Skipped++
			continue
		}
		if missingDetails(candidate) {
			// Nothing to log: the record stays eligible for the day
			// the missing details are filled in.
			summary.Skipped++
			s.logger.Warn("reminder skipped, unresolved student, class or parent email",
				zap.String("fee_record_id", candidate.ID))
			continue
		}
		if s.deliver(ctx, candidate) {
			summary.Sent++
		} else {
			summary.Failed++
		}
	}

	s.logger.Info("reminder pass complete",
		zap.Int("eligible", summary.Eligible),
		zap.Int("sent", summary.Sent),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// SendReminder sends one reminder for a single fee record, bypassing the
// cooldown and the due-date window. Paid and waived records are rejected.
func (s *ReminderService) SendReminder(ctx context.Context, feeID string) (*models.FeeReminder, error) {
	candidate, err := s.fees.GetReminderCandidate(ctx, feeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "fee record not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee record")
	}
	if candidate.Status == models.FeeStatusPaid || candidate.Status == models.FeeStatusWaived {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee record has nothing outstanding")
	}
	if missingDetails(*candidate) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "fee record is missing student, class or parent email details")
	}

	entry := s.attempt(ctx, *candidate)
	return entry, nil
}

// missingDetails reports whether the roster details a reminder message
// needs could not be resolved. The candidate query left-joins students and
// classes, so a deleted row surfaces as a NULL name here rather than a
// scan error; such records are skipped without a log entry.
func missingDetails(candidate models.ReminderCandidate) bool {
	return candidate.ParentEmail == nil || *candidate.ParentEmail == "" ||
		candidate.StudentName == nil || *candidate.StudentName == "" ||
		candidate.ClassName == nil || *candidate.ClassName == ""
}

// deliver sends one reminder and logs the attempt. Returns true on success.
func (s *ReminderService) deliver(ctx context.Context, candidate models.ReminderCandidate) bool {
	entry := s.attempt(ctx, candidate)
	return entry.Status == models.ReminderStatusSent
}

// attempt performs the send and appends the log entry regardless of the
// outcome; failed attempts count toward the cooldown like sent ones.
func (s *ReminderService) attempt(ctx context.Context, candidate models.ReminderCandidate) *models.FeeReminder {
	msg := composeReminder(candidate)
	sendErr := s.mail.Send(ctx, msg)

	entry := &models.FeeReminder{
		FeeRecordID: candidate.ID,
		SentAt:      s.now().UTC(),
		Method:      "email",
		Status:      models.ReminderStatusSent,
	}
	if sendErr != nil {
		entry.Status = models.ReminderStatusFailed
		detail := sendErr.Error()
		entry.ResponseMessage = &detail
		s.logger.Error("reminder delivery failed",
			zap.String("fee_record_id", candidate.ID),
			zap.Error(sendErr))
	}
	s.metrics.RecordReminder(string(entry.Status))

	if err := s.fees.AppendReminder(ctx, entry); err != nil {
		s.logger.Error("reminder log append failed",
			zap.String("fee_record_id", candidate.ID),
			zap.Error(err))
	}
	return entry
}

// composeReminder renders the message. Callers guarantee the student name,
// class name and parent email resolved; only the parent name has a fallback.
func composeReminder(candidate models.ReminderCandidate) mailer.Message {
	studentName := *candidate.StudentName
	className := *candidate.ClassName
	parentName := "Parent"
	if candidate.ParentName != nil && *candidate.ParentName != "" {
		parentName = *candidate.ParentName
	}
	outstanding := candidate.Amount.Sub(candidate.AmountPaid)

	subject := fmt.Sprintf("Fee reminder for %s", studentName)
	body := fmt.Sprintf(
		"Dear %s,\n\nThis is a reminder that a fee of %s %s for %s (%s) is due on %s. The outstanding balance is %s %s.\n\nThank you.",
		parentName,
		candidate.Amount.StringFixed(2), candidate.Currency,
		studentName, className,
		candidate.DueDate.Format("2 January 2006"),
		outstanding.StringFixed(2), candidate.Currency,
	)

	return mailer.Message{To: *candidate.ParentEmail, ToName: parentName, Subject: subject, Body: body}
}
