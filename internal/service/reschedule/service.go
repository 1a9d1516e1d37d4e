package reschedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/repository"
	"github.com/renalcare/capd-api/internal/service/missed"
	"github.com/renalcare/capd-api/pkg/logger"
)

// ErrNoEligibleDate is returned when collision probing exhausts its budget.
// The appointment stays in the missed set and is flagged for manual
// intervention.
var ErrNoEligibleDate = errors.New("no eligible reschedule date found")

// Config holds the reschedule business knobs. The forward offset is a
// configuration constant, not hard business law.
type Config struct {
	OffsetDays         int
	MaxCollisionProbes int
	DispatchTimeout    time.Duration
	BatchTimeout       time.Duration
}

// Service assigns new dates to missed checkups, in batches selected by an
// operator or for the whole missed set in automatic mode. Mutations are
// persisted atomically per appointment; partial batch failure is expected
// and surfaced per item.
type Service struct {
	appts      repository.AppointmentRepository
	patients   repository.PatientRepository
	requests   repository.RescheduleRequestRepository
	detector   *missed.Service
	dispatcher notifier.Dispatcher
	logger     *logger.Logger
	cfg        Config
	now        func() time.Time
}

func NewService(
	appts repository.AppointmentRepository,
	patients repository.PatientRepository,
	requests repository.RescheduleRequestRepository,
	detector *missed.Service,
	dispatcher notifier.Dispatcher,
	log *logger.Logger,
	cfg Config,
) *Service {
	if cfg.OffsetDays <= 0 {
		cfg.OffsetDays = 7
	}
	if cfg.MaxCollisionProbes <= 0 {
		cfg.MaxCollisionProbes = 30
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 10 * time.Second
	}
	return &Service{
		appts:      appts,
		patients:   patients,
		requests:   requests,
		detector:   detector,
		dispatcher: dispatcher,
		logger:     log,
		cfg:        cfg,
		now:        time.Now,
	}
}

// WithClock injects the time source, for deterministic tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// RescheduleBatch assigns each selected missed appointment a new future date.
// One appointment's failure never aborts its siblings; the result carries
// per-item outcomes.
func (s *Service) RescheduleBatch(ctx context.Context, ids []uuid.UUID) (*model.BatchRescheduleResult, error) {
	if s.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.BatchTimeout)
		defer cancel()
	}

	result := &model.BatchRescheduleResult{}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			result.Failed = append(result.Failed, model.RescheduleFailure{
				ScheduleID: id,
				Reason:     fmt.Sprintf("batch deadline exceeded: %v", err),
			})
			continue
		}

		item, err := s.rescheduleMissed(ctx, id)
		if err != nil {
			result.Failed = append(result.Failed, model.RescheduleFailure{
				ScheduleID: id,
				Reason:     err.Error(),
			})
			s.logger.Error(err, "failed to reschedule missed appointment", "appointment_id", id.String())
			continue
		}
		result.Succeeded = append(result.Succeeded, *item)
	}

	return result, nil
}

// RescheduleAll runs detection and reschedules everything found, for fully
// automatic mode.
func (s *Service) RescheduleAll(ctx context.Context) (*model.BatchRescheduleResult, error) {
	report, err := s.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to detect missed appointments: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(report.Appointments))
	for _, m := range report.Appointments {
		ids = append(ids, m.ID)
	}

	return s.RescheduleBatch(ctx, ids)
}

// rescheduleMissed moves one missed appointment forward by the configured
// offset, probing past same-patient collisions, and notifies the patient.
func (s *Service) rescheduleMissed(ctx context.Context, id uuid.UUID) (*model.RescheduledItem, error) {
	apt, err := s.appts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("unknown schedule id")
		}
		return nil, err
	}

	today := model.DateOf(s.now())
	oldDate := model.DateOf(apt.AppointmentDate)

	if apt.CheckupStatus == model.CheckupStatusCompleted {
		return nil, fmt.Errorf("checkup already completed")
	}
	if !oldDate.Before(today) {
		return nil, fmt.Errorf("appointment is not missed")
	}

	candidate := oldDate.AddDate(0, 0, s.cfg.OffsetDays)
	if !candidate.After(today) {
		candidate = today.AddDate(0, 0, 1)
	}
	newDate, err := s.firstFreeDate(ctx, apt.PatientID, candidate, apt.ID)
	if err != nil {
		return nil, err
	}

	apt.AppointmentDate = newDate
	apt.CheckupStatus = model.CheckupStatusPending
	apt.ConfirmationStatus = model.ConfirmationStatusPending
	apt.AppendRemark(model.AutoRescheduleRemark(oldDate))

	if err := s.appts.Update(ctx, apt); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("concurrent update, re-fetch and retry: %w", err)
		}
		return nil, err
	}

	s.notifyRescheduled(ctx, apt, oldDate, newDate, true, "")

	return &model.RescheduledItem{
		ScheduleID: apt.ID,
		OldDate:    oldDate,
		NewDate:    newDate,
	}, nil
}

// firstFreeDate advances day by day from candidate past same-patient
// collisions, up to the probe budget.
func (s *Service) firstFreeDate(ctx context.Context, patientID uuid.UUID, candidate time.Time, excludeID uuid.UUID) (time.Time, error) {
	for probes := 0; probes <= s.cfg.MaxCollisionProbes; probes++ {
		taken, err := s.appts.HasActiveOnDate(ctx, patientID, candidate, excludeID)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to check date collision: %w", err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = candidate.AddDate(0, 0, 1)
	}

	return time.Time{}, ErrNoEligibleDate
}

// RequestReschedule records a patient-initiated reschedule for staff review.
func (s *Service) RequestReschedule(ctx context.Context, appointmentID uuid.UUID, requestedDate time.Time, reason string) (*model.RescheduleRequest, error) {
	apt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if apt.CheckupStatus == model.CheckupStatusCompleted {
		return nil, fmt.Errorf("checkup already completed")
	}

	requested := model.DateOf(requestedDate)
	if !requested.After(model.DateOf(s.now())) {
		return nil, fmt.Errorf("requested date must be in the future")
	}

	req := &model.RescheduleRequest{
		AppointmentID: appointmentID,
		PatientID:     apt.PatientID,
		RequestedDate: requested,
		Reason:        reason,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// DecideRequest approves or denies the pending patient-initiated reschedule
// for the appointment. Approval applies the requested date, probing forward
// if the patient already has an appointment on it.
func (s *Service) DecideRequest(ctx context.Context, appointmentID uuid.UUID, approve bool) (*model.RescheduleRequest, error) {
	req, err := s.requests.GetPendingForAppointment(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("no pending reschedule request for appointment")
		}
		return nil, err
	}

	decidedAt := s.now()

	if !approve {
		if err := s.requests.Decide(ctx, req.ID, model.RescheduleRequestDenied, decidedAt); err != nil {
			return nil, err
		}
		req.Status = model.RescheduleRequestDenied
		req.DecidedAt = &decidedAt
		return req, nil
	}

	apt, err := s.appts.Get(ctx, appointmentID)
	if err != nil {
		return nil, err
	}

	oldDate := model.DateOf(apt.AppointmentDate)
	newDate := model.DateOf(req.RequestedDate)

	newDate, err = s.firstFreeDate(ctx, apt.PatientID, newDate, apt.ID)
	if err != nil {
		return nil, err
	}

	apt.AppointmentDate = newDate
	apt.CheckupStatus = model.CheckupStatusPending
	apt.ConfirmationStatus = model.ConfirmationStatusPending
	apt.RescheduleReason = &req.Reason

	if err := s.appts.Update(ctx, apt); err != nil {
		return nil, err
	}

	if err := s.requests.Decide(ctx, req.ID, model.RescheduleRequestApproved, decidedAt); err != nil {
		return nil, err
	}
	req.Status = model.RescheduleRequestApproved
	req.DecidedAt = &decidedAt

	s.notifyRescheduled(ctx, apt, oldDate, newDate, false, req.Reason)

	return req, nil
}

// notifyRescheduled is best-effort: a dispatch failure is logged, never
// propagated, and never rolls back the store mutation.
func (s *Service) notifyRescheduled(ctx context.Context, apt *model.Appointment, oldDate, newDate time.Time, automatic bool, reason string) {
	patient, err := s.patients.Get(ctx, apt.PatientID)
	if err != nil {
		s.logger.Error(err, "failed to load patient for rescheduled notice", "patient_id", apt.PatientID.String())
		return
	}

	dctx, cancel := context.WithTimeout(ctx, s.cfg.DispatchTimeout)
	defer cancel()

	recipient := model.Recipient{
		Name:           patient.Name,
		Email:          patient.Email,
		Phone:          patient.Phone,
		HospitalNumber: patient.HospitalNumber,
	}
	payload := model.RescheduledPayload{
		PatientName:    patient.Name,
		HospitalNumber: patient.HospitalNumber,
		OldDate:        oldDate,
		NewDate:        newDate,
		Automatic:      automatic,
		Reason:         reason,
	}

	if err := s.dispatcher.Dispatch(dctx, recipient, payload); err != nil {
		s.logger.Error(err, "rescheduled notice dispatch failed",
			"appointment_id", apt.ID.String(), "patient_id", apt.PatientID.String())
	}
}
