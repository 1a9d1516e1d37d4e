package model

import (
	"time"

	"github.com/google/uuid"
)

// Recipient identifies who a notification goes to.
type Recipient struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	HospitalNumber string `json:"hospital_number"`
}

// NotificationPayload is the tagged variant carried by a dispatch. Each
// concrete payload maps to exactly one template, so template fields are
// checked at compile time instead of being assembled ad hoc.
type NotificationPayload interface {
	TemplateID() string
}

// ReminderPayload feeds the three reminder templates, keyed by window.
type ReminderPayload struct {
	Window          ReminderWindow `json:"window"`
	PatientName     string         `json:"patient_name"`
	HospitalNumber  string         `json:"hospital_number"`
	AppointmentDate time.Time      `json:"appointment_date"`
}

func (p ReminderPayload) TemplateID() string {
	return "checkup_reminder_" + string(p.Window)
}

// RescheduledPayload feeds the rescheduled-notice template.
type RescheduledPayload struct {
	PatientName    string    `json:"patient_name"`
	HospitalNumber string    `json:"hospital_number"`
	OldDate        time.Time `json:"old_date"`
	NewDate        time.Time `json:"new_date"`
	Automatic      bool      `json:"automatic"`
	Reason         string    `json:"reason,omitempty"`
}

func (p RescheduledPayload) TemplateID() string {
	return "checkup_rescheduled"
}

// NotificationEvent is published to the broker for in-app consumers
// (staff dashboards) whenever a notification is dispatched.
type NotificationEvent struct {
	ID         uuid.UUID `json:"id"`
	TemplateID string    `json:"template_id"`
	Recipient  Recipient `json:"recipient"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
