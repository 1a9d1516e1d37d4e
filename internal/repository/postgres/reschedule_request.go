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

func (r *rescheduleRequestRepository) Create(ctx context.Context, req *model.RescheduleRequest) error {
	query := `
		INSERT INTO reschedule_requests (
			id, appointment_id, patient_id, requested_date,
			reason, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	req.ID = uuid.New()
	req.Status = model.RescheduleRequestPending
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.AppointmentID,
		req.PatientID,
		model.DateOf(req.RequestedDate),
		req.Reason,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	r.track("reschedule_request_create", err)
	if err != nil {
		return fmt.Errorf("failed to create reschedule request: %w", err)
	}
	return nil
}

func (r *rescheduleRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.RescheduleRequest, error) {
	query := `
		SELECT id, appointment_id, patient_id, requested_date,
			   reason, status, decided_at, created_at, updated_at, deleted_at
		FROM reschedule_requests
		WHERE id = $1 AND deleted_at IS NULL
	`
	var req model.RescheduleRequest
	err := r.db.GetContext(ctx, &req, query, id)
	r.track("reschedule_request_get", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reschedule request: %w", err)
	}
	return &req, nil
}

func (r *rescheduleRequestRepository) GetPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.RescheduleRequest, error) {
	query := `
		SELECT id, appointment_id, patient_id, requested_date,
			   reason, status, decided_at, created_at, updated_at, deleted_at
		FROM reschedule_requests
		WHERE appointment_id = $1 AND status = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
		LIMIT 1
	`
	var req model.RescheduleRequest
	err := r.db.GetContext(ctx, &req, query, appointmentID, model.RescheduleRequestPending)
	r.track("reschedule_request_get_pending", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending reschedule request: %w", err)
	}
	return &req, nil
}

func (r *rescheduleRequestRepository) ListPending(ctx context.Context) ([]*model.RescheduleRequest, error) {
	query := `
		SELECT id, appointment_id, patient_id, requested_date,
			   reason, status, decided_at, created_at, updated_at, deleted_at
		FROM reschedule_requests
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	var reqs []*model.RescheduleRequest
	err := r.db.SelectContext(ctx, &reqs, query, model.RescheduleRequestPending)
	r.track("reschedule_request_list_pending", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reschedule requests: %w", err)
	}
	return reqs, nil
}

func (r *rescheduleRequestRepository) Decide(ctx context.Context, id uuid.UUID, status model.RescheduleRequestStatus, decidedAt time.Time) error {
	query := `
		UPDATE reschedule_requests
		SET status = $1, decided_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, status, decidedAt, time.Now(), id, model.RescheduleRequestPending)
	r.track("reschedule_request_decide", err)
	if err != nil {
		return fmt.Errorf("failed to decide reschedule request: %w", err)
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
