package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Reminder metrics
	RemindersSent    *prometheus.CounterVec
	RemindersSkipped *prometheus.CounterVec
	RemindersFailed  *prometheus.CounterVec

	// Missed-checkup metrics
	MissedDetected  *prometheus.GaugeVec
	DetectionRuns   prometheus.Counter
	DetectionErrors prometheus.Counter

	// Reschedule metrics
	ReschedulesSucceeded prometheus.Counter
	ReschedulesFailed    prometheus.Counter

	// Dispatch metrics
	DispatchLatency  *prometheus.HistogramVec
	DispatchFailures *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		RemindersSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Total number of checkup reminders dispatched",
		}, []string{"window"}),
		RemindersSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_skipped_total",
			Help:      "Reminders skipped because one was already sent for the window",
		}, []string{"window"}),
		RemindersFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Reminder dispatches that failed and will be retried next run",
		}, []string{"window"}),

		MissedDetected: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "missed_checkups",
			Help:      "Missed checkups found by the last detection run",
		}, []string{"bucket"}),
		DetectionRuns: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_runs_total",
			Help:      "Total number of missed-checkup detection runs",
		}),
		DetectionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "detection_errors_total",
			Help:      "Detection runs that ended in error",
		}),

		ReschedulesSucceeded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedules_succeeded_total",
			Help:      "Missed checkups successfully rescheduled",
		}),
		ReschedulesFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reschedules_failed_total",
			Help:      "Reschedule attempts that failed and stay in the missed set",
		}),

		DispatchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent dispatching a single notification",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		DispatchFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_failures_total",
			Help:      "Notification dispatches that failed per channel",
		}, []string{"channel"}),

		DatabaseOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
	}
}
