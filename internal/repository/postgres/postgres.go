package postgres

import (
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/renalcare/capd-api/internal/repository"
	"github.com/renalcare/capd-api/pkg/metrics"
)

// instrumented counts every statement a repository issues. A sql.ErrNoRows
// result is a successful round trip, not a database failure.
type instrumented struct {
	metrics *metrics.Metrics
}

func (i instrumented) track(operation string, err error) {
	if i.metrics == nil {
		return
	}
	status := "success"
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		status = "error"
	}
	i.metrics.DatabaseOperations.WithLabelValues(operation, status).Inc()
}

type appointmentRepository struct {
	instrumented
	db *sqlx.DB
}

type reminderLogRepository struct {
	instrumented
	db *sqlx.DB
}

type patientRepository struct {
	instrumented
	db *sqlx.DB
}

type rescheduleRequestRepository struct {
	instrumented
	db *sqlx.DB
}

func NewAppointmentRepository(db *sqlx.DB, m *metrics.Metrics) repository.AppointmentRepository {
	return &appointmentRepository{instrumented: instrumented{metrics: m}, db: db}
}

func NewReminderLogRepository(db *sqlx.DB, m *metrics.Metrics) repository.ReminderLogRepository {
	return &reminderLogRepository{instrumented: instrumented{metrics: m}, db: db}
}

func NewPatientRepository(db *sqlx.DB, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{instrumented: instrumented{metrics: m}, db: db}
}

func NewRescheduleRequestRepository(db *sqlx.DB, m *metrics.Metrics) repository.RescheduleRequestRepository {
	return &rescheduleRequestRepository{instrumented: instrumented{metrics: m}, db: db}
}
