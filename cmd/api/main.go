package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/renalcare/capd-api/internal/config"
	"github.com/renalcare/capd-api/internal/handler"
	checkupHandler "github.com/renalcare/capd-api/internal/handler/checkup"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/notifier/email"
	"github.com/renalcare/capd-api/internal/notifier/inapp"
	"github.com/renalcare/capd-api/internal/repository/postgres"
	"github.com/renalcare/capd-api/internal/router"
	checkupService "github.com/renalcare/capd-api/internal/service/checkup"
	missedService "github.com/renalcare/capd-api/internal/service/missed"
	rescheduleService "github.com/renalcare/capd-api/internal/service/reschedule"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/messaging/redis"
	"github.com/renalcare/capd-api/pkg/metrics"
)

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

	m := metrics.New("capd_api")

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

	checkupSvc := checkupService.NewService(appointmentRepo, patientRepo, cfg.Scheduler.FollowUpOffsetDays)
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

	h := handler.NewHandler(db)
	checkupH := checkupHandler.NewHandler(
		checkupSvc,
		missedSvc,
		rescheduleSvc,
		m,
		time.Duration(cfg.Scheduler.ReportCacheSeconds)*time.Second,
	)

	r := router.NewRouter(checkupH, h, router.RouterConfig{
		RequestTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	})
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("server started", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
