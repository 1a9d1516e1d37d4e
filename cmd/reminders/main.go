package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"github.com/rs/zerolog/log"

	"github.com/renalcare/capd-api/internal/config"
	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/internal/notifier"
	"github.com/renalcare/capd-api/internal/notifier/email"
	"github.com/renalcare/capd-api/internal/repository/postgres"
	reminderService "github.com/renalcare/capd-api/internal/service/reminder"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/metrics"
)

// jobOptions are the one-shot run knobs, set through the environment so
// cron entries stay plain. Flags override the environment.
type jobOptions struct {
	Window      string        `envconfig:"WINDOW" default:""`
	Timeout     time.Duration `envconfig:"TIMEOUT" default:"10m"`
	PushGateway string        `envconfig:"PUSHGATEWAY" default:""`
}

func main() {
	var opts jobOptions
	if err := envconfig.Process("reminders", &opts); err != nil {
		log.Fatal().Err(err).Msg("failed to read job options")
	}

	windowFlag := flag.String("window", opts.Window, "reminder window to run (today, tomorrow, advance); empty runs all")
	timeoutFlag := flag.Duration("timeout", opts.Timeout, "overall run deadline")
	pushFlag := flag.String("pushgateway", opts.PushGateway, "Pushgateway URL to publish run metrics to; empty disables the push")
	flag.Parse()

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

	m := metrics.New("capd_reminders")

	appointmentRepo := postgres.NewAppointmentRepository(db, m)
	reminderLogRepo := postgres.NewReminderLogRepository(db, m)
	dispatcher := notifier.NewFanout("email", email.NewSender(cfg.SMTP), appLogger, m)

	svc := reminderService.NewService(
		appointmentRepo,
		reminderLogRepo,
		dispatcher,
		appLogger,
		cfg.Scheduler.DispatchTimeout(),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	var stats []*reminderService.RunStats
	if *windowFlag == "" {
		stats, err = svc.RunAll(ctx)
	} else {
		window, perr := model.ParseWindow(*windowFlag)
		if perr != nil {
			log.Fatal().Err(perr).Msg("invalid reminder window")
		}
		var one *reminderService.RunStats
		one, err = svc.Run(ctx, window)
		if one != nil {
			stats = append(stats, one)
		}
	}

	for _, st := range stats {
		m.RemindersSent.WithLabelValues(string(st.Window)).Add(float64(st.Sent))
		m.RemindersSkipped.WithLabelValues(string(st.Window)).Add(float64(st.Skipped))
		m.RemindersFailed.WithLabelValues(string(st.Window)).Add(float64(st.Failed))

		appLogger.Info("reminder run complete",
			"window", string(st.Window),
			"date", st.Date.Format(model.DateFormat),
			"matched", st.Matched,
			"sent", st.Sent,
			"skipped", st.Skipped,
			"failed", st.Failed,
		)
	}

	// A one-shot process has no scrape window, so run metrics only survive
	// through the Pushgateway.
	if *pushFlag != "" {
		if perr := push.New(*pushFlag, "capd_reminders").
			Gatherer(prometheus.DefaultGatherer).
			Push(); perr != nil {
			appLogger.Error(perr, "failed to push run metrics")
		}
	}

	if err != nil {
		appLogger.Error(err, "reminder run finished with errors")
		os.Exit(1)
	}
}
