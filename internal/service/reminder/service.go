package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/repository"
	"github.com/renalcare/capd-api/pkg/logger"
)

// Service sends tiered checkup reminders. Each run covers one lookahead
// window and is idempotent per calendar day: the reminder log guarantees at
// most one successful dispatch per (appointment, window, date).
type Service struct {
	appts           repository.AppointmentRepository
	reminderLog     repository.ReminderLogRepository
	dispatcher      notifier.Dispatcher
	logger          *logger.Logger
	dispatchTimeout time.Duration
	now             func() time.Time
}

func NewService(
	appts repository.AppointmentRepository,
	reminderLog repository.ReminderLogRepository,
	dispatcher notifier.Dispatcher,
	log *logger.Logger,
	dispatchTimeout time.Duration,
) *Service {
	return &Service{
		appts:           appts,
		reminderLog:     reminderLog,
		dispatcher:      dispatcher,
		logger:          log,
		dispatchTimeout: dispatchTimeout,
		now:             time.Now,
	}
}

// WithClock injects the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RunStats reports one window run. Failed dispatches stay unrecorded in the
// reminder log and are retried on the next scheduled run.
type RunStats struct {
	Window  model.ReminderWindow
	Date    time.Time
	Matched int
	Sent    int
	Skipped int
	Failed  int
}

// Run processes a single reminder window for the current processing date.
// A failed dispatch never aborts the batch.
func (s *Service) Run(ctx context.Context, window model.ReminderWindow) (*RunStats, error) {
	if !window.Valid() {
		return nil, fmt.Errorf("unknown reminder window: %q", window)
	}

	today := model.DateOf(s.now())
	target := today.AddDate(0, 0, window.Offset())

	candidates, err := s.appts.ListForReminder(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}

	stats := &RunStats{Window: window, Date: target, Matched: len(candidates)}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("reminder run interrupted: %w", err)
		}

		reserved, err := s.reminderLog.Reserve(ctx, c.ID, window, today)
		if err != nil {
			stats.Failed++
			s.logger.Error(err, "failed to reserve reminder",
				"appointment_id", c.ID.String(), "window", string(window))
			continue
		}
		if !reserved {
			stats.Skipped++
			continue
		}

		if err := s.dispatch(ctx, c, window); err != nil {
			stats.Failed++
			s.logger.Error(err, "reminder dispatch failed, will retry next run",
				"appointment_id", c.ID.String(), "window", string(window))

			// Give the reservation back so the next run retries.
			if relErr := s.reminderLog.Release(ctx, c.ID, window, today); relErr != nil {
				s.logger.Error(relErr, "failed to release reminder reservation",
					"appointment_id", c.ID.String(), "window", string(window))
			}
			continue
		}

		stats.Sent++
	}

	s.logger.Info("reminder window processed",
		"window", string(window),
		"date", target.Format(model.DateFormat),
		"matched", stats.Matched,
		"sent", stats.Sent,
		"skipped", stats.Skipped,
		"failed", stats.Failed)

	return stats, nil
}

// RunAll processes every window. Windows are independent; a window that
// errors does not stop the others.
func (s *Service) RunAll(ctx context.Context) ([]*RunStats, error) {
	var all []*RunStats
	var firstErr error

	for _, w := range model.Windows() {
		stats, err := s.Run(ctx, w)
		if stats != nil {
			all = append(all, stats)
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return all, firstErr
}

func (s *Service) dispatch(ctx context.Context, c *model.ReminderCandidate, window model.ReminderWindow) error {
	dctx, cancel := context.WithTimeout(ctx, s.dispatchTimeout)
	defer cancel()

	recipient := model.Recipient{
		Name:           c.PatientName,
		Email:          c.PatientEmail,
		Phone:          c.PatientPhone,
		HospitalNumber: c.HospitalNumber,
	}
	payload := model.ReminderPayload{
		Window:          window,
		PatientName:     c.PatientName,
		HospitalNumber:  c.HospitalNumber,
		AppointmentDate: c.AppointmentDate,
	}

	return s.dispatcher.Dispatch(dctx, recipient, payload)
}
