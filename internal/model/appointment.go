package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ConfirmationStatus string

const (
	ConfirmationStatusPending   ConfirmationStatus = "pending"
	ConfirmationStatusConfirmed ConfirmationStatus = "confirmed"
)

type CheckupStatus string

const (
	CheckupStatusPending   CheckupStatus = "pending"
	CheckupStatusCompleted CheckupStatus = "completed"
)

// Appointment is a scheduled CAPD checkup. Rows are never hard-deleted;
// patients are archived instead. Version guards concurrent mutations: every
// update must carry the version it read, and a stale write loses.
type Appointment struct {
	Base
	PatientID          uuid.UUID          `db:"patient_id" json:"patient_id"`
	AppointmentDate    time.Time          `db:"appointment_date" json:"appointment_date"`
	ConfirmationStatus ConfirmationStatus `db:"confirmation_status" json:"confirmation_status"`
	CheckupStatus      CheckupStatus      `db:"checkup_status" json:"checkup_status"`
	RescheduleReason   *string            `db:"reschedule_reason" json:"reschedule_reason,omitempty"`
	CheckupRemarks     *string            `db:"checkup_remarks" json:"checkup_remarks,omitempty"`
	Version            int                `db:"version" json:"version"`
}

// autoRemarkPrefix marks system-generated reschedules so downstream UIs can
// distinguish them from manual ones.
const autoRemarkPrefix = "Automatically rescheduled from missed appointment on "

// AutoRescheduleRemark builds the system marker appended to checkup remarks
// when a missed appointment is rescheduled automatically.
func AutoRescheduleRemark(missedDate time.Time) string {
	return autoRemarkPrefix + missedDate.Format(DateFormat)
}

// IsAutoRescheduled reports whether the appointment carries the system marker.
func (a *Appointment) IsAutoRescheduled() bool {
	if a.CheckupRemarks == nil {
		return false
	}
	return strings.Contains(*a.CheckupRemarks, autoRemarkPrefix)
}

// AppendRemark appends text to the checkup remarks, newline-separated.
func (a *Appointment) AppendRemark(remark string) {
	if a.CheckupRemarks == nil || *a.CheckupRemarks == "" {
		a.CheckupRemarks = &remark
		return
	}
	combined := fmt.Sprintf("%s\n%s", *a.CheckupRemarks, remark)
	a.CheckupRemarks = &combined
}

type CreateAppointmentRequest struct {
	PatientID       uuid.UUID `json:"patient_id" binding:"required"`
	AppointmentDate string    `json:"appointment_date" binding:"required"`
	Remarks         string    `json:"remarks"`
}

type BatchRescheduleRequest struct {
	ScheduleIDs []uuid.UUID `json:"schedule_ids" binding:"required,min=1"`
}

type DecideRescheduleRequest struct {
	ScheduleID uuid.UUID `json:"schedule_id" binding:"required"`
	Approve    bool      `json:"approve"`
}

// BatchRescheduleResponse is the wire shape of a batch reschedule outcome.
// Partial failure is expected; errors are reported per appointment.
type BatchRescheduleResponse struct {
	Success  bool     `json:"success"`
	NewDates []string `json:"new_dates"`
	Errors   []string `json:"errors"`
}

type RescheduledItem struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	OldDate    time.Time `json:"old_date"`
	NewDate    time.Time `json:"new_date"`
}

type RescheduleFailure struct {
	ScheduleID uuid.UUID `json:"schedule_id"`
	Reason     string    `json:"reason"`
}

// BatchRescheduleResult is the structured per-item outcome of a batch run.
type BatchRescheduleResult struct {
	Succeeded []RescheduledItem   `json:"succeeded"`
	Failed    []RescheduleFailure `json:"failed"`
}

// Response flattens the result into the wire shape consumed by staff UIs.
func (r *BatchRescheduleResult) Response() BatchRescheduleResponse {
	resp := BatchRescheduleResponse{
		Success:  len(r.Failed) == 0,
		NewDates: make([]string, 0, len(r.Succeeded)),
		Errors:   make([]string, 0, len(r.Failed)),
	}
	for _, item := range r.Succeeded {
		resp.NewDates = append(resp.NewDates, item.NewDate.Format(DateFormat))
	}
	for _, f := range r.Failed {
		resp.Errors = append(resp.Errors, fmt.Sprintf("%s: %s", f.ScheduleID, f.Reason))
	}
	return resp
}

type RescheduleRequestStatus string

const (
	RescheduleRequestPending  RescheduleRequestStatus = "pending"
	RescheduleRequestApproved RescheduleRequestStatus = "approved"
	RescheduleRequestDenied   RescheduleRequestStatus = "denied"
)

// RescheduleRequest is a patient-initiated reschedule awaiting staff
// approval, distinct from automatic rescheduling of missed checkups.
type RescheduleRequest struct {
	Base
	AppointmentID uuid.UUID               `db:"appointment_id" json:"appointment_id"`
	PatientID     uuid.UUID               `db:"patient_id" json:"patient_id"`
	RequestedDate time.Time               `db:"requested_date" json:"requested_date"`
	Reason        string                  `db:"reason" json:"reason"`
	Status        RescheduleRequestStatus `db:"status" json:"status"`
	DecidedAt     *time.Time              `db:"decided_at" json:"decided_at,omitempty"`
}
