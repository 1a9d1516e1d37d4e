package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
)

// The reminder_logs table carries a unique index on (appointment_id,
// reminder_window, sent_on). ON CONFLICT DO NOTHING makes Reserve race-safe:
// of two overlapping runs, exactly one observes an insert.

func (r *reminderLogRepository) Reserve(ctx context.Context, appointmentID uuid.UUID, window model.ReminderWindow, sentOn time.Time) (bool, error) {
	query := `
		INSERT INTO reminder_logs (id, appointment_id, reminder_window, sent_on, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (appointment_id, reminder_window, sent_on) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query,
		uuid.New(),
		appointmentID,
		window,
		model.DateOf(sentOn),
		time.Now(),
	)
	r.track("reminder_log_reserve", err)
	if err != nil {
		return false, fmt.Errorf("failed to reserve reminder: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

func (r *reminderLogRepository) Release(ctx context.Context, appointmentID uuid.UUID, window model.ReminderWindow, sentOn time.Time) error {
	query := `
		DELETE FROM reminder_logs
		WHERE appointment_id = $1 AND reminder_window = $2 AND sent_on = $3
	`
	_, err := r.db.ExecContext(ctx, query, appointmentID, window, model.DateOf(sentOn))
	r.track("reminder_log_release", err)
	if err != nil {
		return fmt.Errorf("failed to release reminder: %w", err)
	}
	return nil
}
