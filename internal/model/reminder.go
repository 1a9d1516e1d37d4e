package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReminderWindow is one of the three reminder lead-times.
type ReminderWindow string

const (
	WindowToday    ReminderWindow = "today"
	WindowTomorrow ReminderWindow = "tomorrow"
	WindowAdvance  ReminderWindow = "advance"
)

// Windows lists all reminder windows. Order carries no significance; each
// window is an independent batch.
func Windows() []ReminderWindow {
	return []ReminderWindow{WindowToday, WindowTomorrow, WindowAdvance}
}

// Offset returns the lookahead in days for the window.
func (w ReminderWindow) Offset() int {
	switch w {
	case WindowToday:
		return 0
	case WindowTomorrow:
		return 1
	case WindowAdvance:
		return 2
	}
	return 0
}

// Valid reports whether w is a known window.
func (w ReminderWindow) Valid() bool {
	switch w {
	case WindowToday, WindowTomorrow, WindowAdvance:
		return true
	}
	return false
}

// ParseWindow parses a window name.
func ParseWindow(s string) (ReminderWindow, error) {
	w := ReminderWindow(s)
	if !w.Valid() {
		return "", fmt.Errorf("unknown reminder window: %q", s)
	}
	return w, nil
}

// ReminderLog records that a reminder was dispatched for an appointment and
// window on a given date. The (appointment_id, window, sent_on) key is unique
// so a second run on the same day cannot re-notify.
type ReminderLog struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	AppointmentID uuid.UUID      `db:"appointment_id" json:"appointment_id"`
	Window        ReminderWindow `db:"reminder_window" json:"window"`
	SentOn        time.Time      `db:"sent_on" json:"sent_on"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
}

// MissedBucket groups missed checkups by recency for prioritization.
type MissedBucket string

const (
	BucketYesterday MissedBucket = "yesterday"
	BucketOlder     MissedBucket = "older"
)

// BucketFor buckets a missed appointment date against the processing date.
// Callers must only pass dates strictly before today.
func BucketFor(appointmentDate, today time.Time) MissedBucket {
	if SameDate(appointmentDate, DateOf(today).AddDate(0, 0, -1)) {
		return BucketYesterday
	}
	return BucketOlder
}

// MissedAppointment is a derived view: a past-dated appointment never marked
// completed, joined with the patient contact needed to act on it.
type MissedAppointment struct {
	Appointment
	PatientName    string       `db:"patient_name" json:"patient_name"`
	PatientEmail   string       `db:"patient_email" json:"patient_email"`
	PatientPhone   string       `db:"patient_phone" json:"patient_phone,omitempty"`
	HospitalNumber string       `db:"hospital_number" json:"hospital_number"`
	Bucket         MissedBucket `db:"-" json:"bucket"`
}

// MissedCounts drives staff-facing alert thresholds.
type MissedCounts struct {
	Unrescheduled          int `json:"unrescheduled"`
	YesterdayUnrescheduled int `json:"yesterday_unrescheduled"`
}

// MissedReport is the output of one detection run. Detection never mutates.
type MissedReport struct {
	Appointments []*MissedAppointment `json:"appointments"`
	Counts       MissedCounts         `json:"counts"`
	GeneratedAt  time.Time            `json:"generated_at"`
}

// ReminderCandidate is an appointment due for a reminder, joined with the
// patient contact the dispatcher needs.
type ReminderCandidate struct {
	Appointment
	PatientName    string `db:"patient_name" json:"patient_name"`
	PatientEmail   string `db:"patient_email" json:"patient_email"`
	PatientPhone   string `db:"patient_phone" json:"patient_phone,omitempty"`
	HospitalNumber string `db:"hospital_number" json:"hospital_number"`
}
