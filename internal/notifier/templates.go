package notifier

import (
	"fmt"

	"github.com/renalcare/capd-api/internal/model"
)

// Rendered is a notification ready for any channel.
type Rendered struct {
	TemplateID string
	Subject    string
	Body       string
}

// Render produces the channel-agnostic message for a payload. Each payload
// variant maps to exactly one template.
func Render(recipient model.Recipient, payload model.NotificationPayload) (*Rendered, error) {
	switch p := payload.(type) {
	case model.ReminderPayload:
		return renderReminder(p)
	case model.RescheduledPayload:
		return renderRescheduled(p)
	default:
		return nil, fmt.Errorf("no template for payload %T", payload)
	}
}

func renderReminder(p model.ReminderPayload) (*Rendered, error) {
	date := p.AppointmentDate.Format(model.DateFormat)

	var subject, lead string
	switch p.Window {
	case model.WindowToday:
		subject = "Your CAPD checkup is today"
		lead = fmt.Sprintf("This is a reminder that your CAPD checkup is scheduled for today, %s.", date)
	case model.WindowTomorrow:
		subject = "Your CAPD checkup is tomorrow"
		lead = fmt.Sprintf("This is a reminder that your CAPD checkup is scheduled for tomorrow, %s.", date)
	case model.WindowAdvance:
		subject = "Upcoming CAPD checkup"
		lead = fmt.Sprintf("This is an advance reminder that your CAPD checkup is scheduled for %s.", date)
	default:
		return nil, fmt.Errorf("unknown reminder window: %q", p.Window)
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n%s\n\nHospital number: %s\n\nPlease arrive on time. If you cannot attend, contact the clinic to reschedule.",
		p.PatientName, lead, p.HospitalNumber,
	)

	return &Rendered{
		TemplateID: p.TemplateID(),
		Subject:    subject,
		Body:       body,
	}, nil
}

func renderRescheduled(p model.RescheduledPayload) (*Rendered, error) {
	oldDate := p.OldDate.Format(model.DateFormat)
	newDate := p.NewDate.Format(model.DateFormat)

	lead := fmt.Sprintf(
		"Your CAPD checkup originally scheduled for %s has been moved to %s.",
		oldDate, newDate,
	)
	if p.Automatic {
		lead = fmt.Sprintf(
			"You missed your CAPD checkup on %s. A new checkup has been scheduled for %s.",
			oldDate, newDate,
		)
	}

	body := fmt.Sprintf(
		"Dear %s,\n\n%s\n\nHospital number: %s\n\nPlease confirm the new date with the clinic.",
		p.PatientName, lead, p.HospitalNumber,
	)

	return &Rendered{
		TemplateID: p.TemplateID(),
		Subject:    "Your CAPD checkup has been rescheduled",
		Body:       body,
	}, nil
}
