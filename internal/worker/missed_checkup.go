package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/service/missed"
	"github.com/renalcare/capd-api/internal/service/reschedule"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/metrics"
)

// MissedCheckupWorker runs missed-checkup detection on a cron cadence and,
// when automatic mode is on, reschedules everything it finds. Each tick is
// bounded by the batch timeout so a stuck run cannot pile up behind the next.
type MissedCheckupWorker struct {
	detector       *missed.Service
	rescheduler    *reschedule.Service
	logger         *logger.Logger
	metrics        *metrics.Metrics
	cronSpec       string
	autoReschedule bool
	runTimeout     time.Duration
	cron           *cron.Cron
}

type MissedCheckupConfig struct {
	CronSpec       string
	AutoReschedule bool
	RunTimeout     time.Duration
}

func NewMissedCheckupWorker(
	detector *missed.Service,
	rescheduler *reschedule.Service,
	log *logger.Logger,
	m *metrics.Metrics,
	cfg MissedCheckupConfig,
) *MissedCheckupWorker {
	if cfg.CronSpec == "" {
		cfg.CronSpec = "0 8 * * *"
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}
	return &MissedCheckupWorker{
		detector:       detector,
		rescheduler:    rescheduler,
		logger:         log,
		metrics:        m,
		cronSpec:       cfg.CronSpec,
		autoReschedule: cfg.AutoReschedule,
		runTimeout:     cfg.RunTimeout,
	}
}

// Start schedules the cron job and blocks until ctx is cancelled.
func (w *MissedCheckupWorker) Start(ctx context.Context) error {
	w.cron = cron.New()

	if _, err := w.cron.AddFunc(w.cronSpec, func() {
		runCtx, cancel := context.WithTimeout(ctx, w.runTimeout)
		defer cancel()

		if err := w.RunOnce(runCtx); err != nil {
			w.logger.Error(err, "missed-checkup run failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule missed-checkup job: %w", err)
	}

	w.cron.Start()
	w.logger.Info("missed-checkup worker started", "cron", w.cronSpec, "auto_reschedule", w.autoReschedule)

	<-ctx.Done()

	stopped := w.cron.Stop()
	<-stopped.Done()
	w.logger.Info("missed-checkup worker stopped")
	return nil
}

// RunOnce performs a single detection pass, publishing gauge counts, and in
// automatic mode reschedules the whole missed set.
func (w *MissedCheckupWorker) RunOnce(ctx context.Context) error {
	w.metrics.DetectionRuns.Inc()

	report, err := w.detector.Detect(ctx)
	if err != nil {
		w.metrics.DetectionErrors.Inc()
		return err
	}

	yesterday := report.Counts.YesterdayUnrescheduled
	older := report.Counts.Unrescheduled - yesterday
	w.metrics.MissedDetected.WithLabelValues(string(model.BucketYesterday)).Set(float64(yesterday))
	w.metrics.MissedDetected.WithLabelValues(string(model.BucketOlder)).Set(float64(older))

	w.logger.Info("missed-checkup detection complete",
		"total", report.Counts.Unrescheduled, "yesterday", yesterday)

	if !w.autoReschedule || report.Counts.Unrescheduled == 0 {
		return nil
	}

	result, err := w.rescheduler.RescheduleAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to auto-reschedule missed checkups: %w", err)
	}

	w.metrics.ReschedulesSucceeded.Add(float64(len(result.Succeeded)))
	w.metrics.ReschedulesFailed.Add(float64(len(result.Failed)))

	w.logger.Info("auto-reschedule complete",
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))
	return nil
}
