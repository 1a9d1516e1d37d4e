package checkup

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/repository"
)

// Service owns the appointment lifecycle: creation, patient confirmation and
// clinic-side completion. Missed detection and rescheduling build on top of
// the states this service maintains.
type Service struct {
	appts          repository.AppointmentRepository
	patients       repository.PatientRepository
	followUpOffset int
	now            func() time.Time
}

func NewService(appts repository.AppointmentRepository, patients repository.PatientRepository, followUpOffsetDays int) *Service {
	return &Service{
		appts:          appts,
		patients:       patients,
		followUpOffset: followUpOffsetDays,
		now:            time.Now,
	}
}

// WithClock injects the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Create schedules a checkup for an active patient. New appointments start
// unconfirmed with the checkup pending.
func (s *Service) Create(ctx context.Context, req *model.CreateAppointmentRequest) (*model.Appointment, error) {
	patient, err := s.patients.Get(ctx, req.PatientID)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if patient.Status != model.PatientStatusActive {
		return nil, fmt.Errorf("patient is not active")
	}

	date, err := time.Parse(model.DateFormat, req.AppointmentDate)
	if err != nil {
		return nil, fmt.Errorf("invalid appointment date: %w", err)
	}
	date = model.DateOf(date)

	taken, err := s.appts.HasActiveOnDate(ctx, req.PatientID, date, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check date collision: %w", err)
	}
	if taken {
		return nil, fmt.Errorf("patient already has an appointment on %s", date.Format(model.DateFormat))
	}

	apt := &model.Appointment{
		PatientID:          req.PatientID,
		AppointmentDate:    date,
		ConfirmationStatus: model.ConfirmationStatusPending,
		CheckupStatus:      model.CheckupStatusPending,
	}
	if req.Remarks != "" {
		apt.CheckupRemarks = &req.Remarks
	}

	if err := s.appts.Create(ctx, apt); err != nil {
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}
	return apt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	return s.appts.Get(ctx, id)
}

// Confirm marks the appointment as confirmed by the patient. Confirming an
// already confirmed appointment is a no-op.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) error {
	apt, err := s.appts.Get(ctx, id)
	if err != nil {
		return err
	}
	if apt.CheckupStatus == model.CheckupStatusCompleted {
		return fmt.Errorf("checkup already completed")
	}
	if apt.ConfirmationStatus == model.ConfirmationStatusConfirmed {
		return nil
	}
	return s.appts.Confirm(ctx, id)
}

// Complete records the checkup as done and, when a follow-up offset is
// configured, books the next routine checkup on the first free date.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, remarks *string) (*model.Appointment, error) {
	apt, err := s.appts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if apt.CheckupStatus == model.CheckupStatusCompleted {
		return nil, fmt.Errorf("checkup already completed")
	}

	if err := s.appts.Complete(ctx, id, remarks); err != nil {
		return nil, err
	}

	if s.followUpOffset <= 0 {
		return nil, nil
	}

	next := model.DateOf(apt.AppointmentDate).AddDate(0, 0, s.followUpOffset)
	if today := model.DateOf(s.now()); !next.After(today) {
		next = today.AddDate(0, 0, 1)
	}
	taken, err := s.appts.HasActiveOnDate(ctx, apt.PatientID, next, uuid.Nil)
	if err != nil {
		return nil, fmt.Errorf("failed to check follow-up date: %w", err)
	}
	if taken {
		// the patient is already booked, nothing to add
		return nil, nil
	}

	followUp := &model.Appointment{
		PatientID:          apt.PatientID,
		AppointmentDate:    next,
		ConfirmationStatus: model.ConfirmationStatusPending,
		CheckupStatus:      model.CheckupStatusPending,
	}
	if err := s.appts.Create(ctx, followUp); err != nil {
		return nil, fmt.Errorf("failed to create follow-up appointment: %w", err)
	}
	return followUp, nil
}
