package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/renalcare/capd-api/internal/config"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/notifier/email"
	"github.com/renalcare/capd-api/internal/notifier/inapp"
	"github.com/renalcare/capd-api/internal/repository/postgres"
	missedService "github.com/renalcare/capd-api/internal/service/missed"
	rescheduleService "github.com/renalcare/capd-api/internal/service/reschedule"
	"github.com/renalcare/capd-api/internal/worker"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/messaging/redis"
	"github.com/renalcare/capd-api/pkg/metrics"
)

// opsMux serves liveness, readiness and the Prometheus scrape endpoint on
// the worker's side port.
func opsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func startOpsServer(appLogger *logger.Logger) {
	go func() {
		if err := http.ListenAndServe(":8081", opsMux()); err != nil {
			appLogger.Fatal(err, "ops server failed")
		}
	}()
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	m := metrics.New("capd_worker")

	appointmentRepo := postgres.NewAppointmentRepository(db, m)
	patientRepo := postgres.NewPatientRepository(db, m)
	requestRepo := postgres.NewRescheduleRequestRepository(db, m)

	emailSender := email.NewSender(cfg.SMTP)
	dispatcher := notifier.NewFanout("email", emailSender, appLogger, m)

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer broker.Close()
		dispatcher = dispatcher.WithAuxiliary("inapp", inapp.NewPublisher(broker))
	}

	missedSvc := missedService.NewService(appointmentRepo)
	rescheduleSvc := rescheduleService.NewService(
		appointmentRepo,
		patientRepo,
		requestRepo,
		missedSvc,
		dispatcher,
		appLogger,
		rescheduleService.Config{
			OffsetDays:         cfg.Scheduler.RescheduleOffsetDays,
			MaxCollisionProbes: cfg.Scheduler.MaxCollisionProbes,
			DispatchTimeout:    cfg.Scheduler.DispatchTimeout(),
			BatchTimeout:       cfg.Scheduler.BatchTimeout(),
		},
	)

	w := worker.NewMissedCheckupWorker(missedSvc, rescheduleSvc, appLogger, m, worker.MissedCheckupConfig{
		CronSpec:       cfg.Scheduler.DetectionCron,
		AutoReschedule: cfg.Scheduler.AutoReschedule,
		RunTimeout:     cfg.Scheduler.BatchTimeout(),
	})

	startOpsServer(appLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		appLogger.Info("shutting down...")
		cancel()
	}()

	if err := w.Start(ctx); err != nil {
		appLogger.Fatal(err, "worker failed")
	}
}
