package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
)

// Sentinel errors shared by all implementations. Version conflicts must be
// detectable so the losing side of a concurrent mutation can re-fetch.
var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
)

// All repository interfaces in one file
type (
	// AppointmentRepository owns appointment rows; every other component
	// reads and requests mutations through it.
	AppointmentRepository interface {
		Create(ctx context.Context, appointment *model.Appointment) error
		Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error)
		// Update persists the appointment only if the stored version still
		// matches appointment.Version; on success the version is bumped.
		// Returns ErrVersionConflict when a concurrent writer won.
		Update(ctx context.Context, appointment *model.Appointment) error
		Confirm(ctx context.Context, id uuid.UUID) error
		Complete(ctx context.Context, id uuid.UUID, remarks *string) error
		// ListForReminder returns confirmed, checkup-pending appointments on
		// the given date for active patients, joined with patient contact.
		ListForReminder(ctx context.Context, date time.Time) ([]*model.ReminderCandidate, error)
		// ListMissed returns checkup-pending appointments dated strictly
		// before the given date that no later pending appointment for the
		// same patient supersedes. It is a pure read.
		ListMissed(ctx context.Context, before time.Time) ([]*model.MissedAppointment, error)
		// HasActiveOnDate reports whether the patient already has a
		// checkup-pending appointment on the date, excluding excludeID.
		HasActiveOnDate(ctx context.Context, patientID uuid.UUID, date time.Time, excludeID uuid.UUID) (bool, error)
	}

	// ReminderLogRepository is the dedupe ledger for reminder dispatches.
	ReminderLogRepository interface {
		// Reserve atomically records intent to send for (appointment,
		// window, date). It returns false if a record already exists, so
		// concurrent runs agree on a single sender.
		Reserve(ctx context.Context, appointmentID uuid.UUID, window model.ReminderWindow, sentOn time.Time) (bool, error)
		// Release removes a reservation after a failed dispatch so the next
		// scheduled run retries it.
		Release(ctx context.Context, appointmentID uuid.UUID, window model.ReminderWindow, sentOn time.Time) error
	}

	PatientRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	}

	RescheduleRequestRepository interface {
		Create(ctx context.Context, req *model.RescheduleRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.RescheduleRequest, error)
		GetPendingForAppointment(ctx context.Context, appointmentID uuid.UUID) (*model.RescheduleRequest, error)
		ListPending(ctx context.Context) ([]*model.RescheduleRequest, error)
		Decide(ctx context.Context, id uuid.UUID, status model.RescheduleRequestStatus, decidedAt time.Time) error
	}
)
