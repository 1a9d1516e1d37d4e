package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/repository"
)

func (r *appointmentRepository) Create(ctx context.Context, appointment *model.Appointment) error {
	query := `
		INSERT INTO appointments (
			id, patient_id, appointment_date,
			confirmation_status, checkup_status,
			reschedule_reason, checkup_remarks, version,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	appointment.ID = uuid.New()
	appointment.Version = 1
	appointment.CreatedAt = time.Now()
	appointment.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		appointment.ID,
		appointment.PatientID,
		model.DateOf(appointment.AppointmentDate),
		appointment.ConfirmationStatus,
		appointment.CheckupStatus,
		appointment.RescheduleReason,
		appointment.CheckupRemarks,
		appointment.Version,
		appointment.CreatedAt,
		appointment.UpdatedAt,
	)
	r.track("appointment_create", err)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *appointmentRepository) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	query := `
		SELECT id, patient_id, appointment_date,
			   confirmation_status, checkup_status,
			   reschedule_reason, checkup_remarks, version,
			   created_at, updated_at, deleted_at
		FROM appointments
		WHERE id = $1 AND deleted_at IS NULL
	`
	var appointment model.Appointment
	err := r.db.GetContext(ctx, &appointment, query, id)
	r.track("appointment_get", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return &appointment, nil
}

// Update is version-guarded: the row is written only if the stored version
// still matches, and the version is bumped in the same statement.
func (r *appointmentRepository) Update(ctx context.Context, appointment *model.Appointment) error {
	query := `
		UPDATE appointments
		SET appointment_date = $1,
			confirmation_status = $2,
			checkup_status = $3,
			reschedule_reason = $4,
			checkup_remarks = $5,
			version = version + 1,
			updated_at = $6
		WHERE id = $7 AND version = $8 AND deleted_at IS NULL
	`
	appointment.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		model.DateOf(appointment.AppointmentDate),
		appointment.ConfirmationStatus,
		appointment.CheckupStatus,
		appointment.RescheduleReason,
		appointment.CheckupRemarks,
		appointment.UpdatedAt,
		appointment.ID,
		appointment.Version,
	)
	r.track("appointment_update", err)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Distinguish a stale write from a missing row.
		if _, err := r.Get(ctx, appointment.ID); err != nil {
			return err
		}
		return repository.ErrVersionConflict
	}

	appointment.Version++
	return nil
}

func (r *appointmentRepository) Confirm(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE appointments
		SET confirmation_status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.ConfirmationStatusConfirmed, time.Now(), id)
	r.track("appointment_confirm", err)
	if err != nil {
		return fmt.Errorf("failed to confirm appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) Complete(ctx context.Context, id uuid.UUID, remarks *string) error {
	query := `
		UPDATE appointments
		SET checkup_status = $1,
			checkup_remarks = COALESCE($2, checkup_remarks),
			version = version + 1,
			updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.CheckupStatusCompleted, remarks, time.Now(), id)
	r.track("appointment_complete", err)
	if err != nil {
		return fmt.Errorf("failed to complete appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *appointmentRepository) ListForReminder(ctx context.Context, date time.Time) ([]*model.ReminderCandidate, error) {
	query := `
		SELECT a.id, a.patient_id, a.appointment_date,
			   a.confirmation_status, a.checkup_status,
			   a.reschedule_reason, a.checkup_remarks, a.version,
			   a.created_at, a.updated_at, a.deleted_at,
			   p.name AS patient_name,
			   p.email AS patient_email,
			   p.phone AS patient_phone,
			   p.hospital_number
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.appointment_date = $1
		  AND a.confirmation_status = $2
		  AND a.checkup_status = $3
		  AND a.deleted_at IS NULL
		  AND p.status = $4
		ORDER BY a.appointment_date ASC, a.created_at ASC
	`
	var candidates []*model.ReminderCandidate
	err := r.db.SelectContext(ctx, &candidates, query,
		model.DateOf(date),
		model.ConfirmationStatusConfirmed,
		model.CheckupStatusPending,
		model.PatientStatusActive,
	)
	r.track("appointment_list_for_reminder", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder candidates: %w", err)
	}
	return candidates, nil
}

func (r *appointmentRepository) ListMissed(ctx context.Context, before time.Time) ([]*model.MissedAppointment, error) {
	query := `
		SELECT a.id, a.patient_id, a.appointment_date,
			   a.confirmation_status, a.checkup_status,
			   a.reschedule_reason, a.checkup_remarks, a.version,
			   a.created_at, a.updated_at, a.deleted_at,
			   p.name AS patient_name,
			   p.email AS patient_email,
			   p.phone AS patient_phone,
			   p.hospital_number
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		WHERE a.appointment_date < $1
		  AND a.checkup_status = $2
		  AND a.deleted_at IS NULL
		  AND p.status = $3
		  AND NOT EXISTS (
			  SELECT 1 FROM appointments later
			  WHERE later.patient_id = a.patient_id
			    AND later.appointment_date > a.appointment_date
			    AND later.checkup_status = $2
			    AND later.deleted_at IS NULL
		  )
		ORDER BY a.appointment_date DESC
	`
	var missed []*model.MissedAppointment
	err := r.db.SelectContext(ctx, &missed, query,
		model.DateOf(before),
		model.CheckupStatusPending,
		model.PatientStatusActive,
	)
	r.track("appointment_list_missed", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list missed appointments: %w", err)
	}
	return missed, nil
}

func (r *appointmentRepository) HasActiveOnDate(ctx context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE patient_id = $1
			  AND appointment_date = $2
			  AND checkup_status = $3
			  AND id != $4
			  AND deleted_at IS NULL
		)
	`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query,
		patientID,
		model.DateOf(date),
		model.CheckupStatusPending,
		excludeID,
	)
	r.track("appointment_has_active_on_date", err)
	if err != nil {
		return false, fmt.Errorf("failed to check active appointments: %w", err)
	}
	return exists, nil
}
