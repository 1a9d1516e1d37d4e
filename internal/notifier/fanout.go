package notifier

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/renalcare/capd-api/internal/model"
	"github.com/renalcare/capd-api/pkg/logger"
	"github.com/renalcare/capd-api/pkg/metrics"
)

// Fanout dispatches through the primary patient-facing channel and mirrors
// to auxiliary channels. The primary result decides success; auxiliaries are
// fire-and-log and never block the caller.
type Fanout struct {
	primary     namedDispatcher
	auxiliaries []namedDispatcher
	logger      *logger.Logger
	metrics     *metrics.Metrics
	auxTimeout  time.Duration
}

type namedDispatcher struct {
	name string
	d    Dispatcher
}

func NewFanout(primaryName string, primary Dispatcher, log *logger.Logger, m *metrics.Metrics) *Fanout {
	return &Fanout{
		primary:    namedDispatcher{name: primaryName, d: primary},
		logger:     log,
		metrics:    m,
		auxTimeout: 5 * time.Second,
	}
}

// WithAuxiliary registers an additional best-effort channel.
func (f *Fanout) WithAuxiliary(name string, d Dispatcher) *Fanout {
	f.auxiliaries = append(f.auxiliaries, namedDispatcher{name: name, d: d})
	return f
}

func (f *Fanout) Dispatch(ctx context.Context, recipient model.Recipient, payload model.NotificationPayload) error {
	for _, aux := range f.auxiliaries {
		go f.dispatchAux(aux, recipient, payload)
	}

	err := f.timed(ctx, f.primary, recipient, payload)
	if err != nil && f.metrics != nil {
		f.metrics.DispatchFailures.WithLabelValues(f.primary.name).Inc()
	}
	return err
}

func (f *Fanout) dispatchAux(aux namedDispatcher, recipient model.Recipient, payload model.NotificationPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), f.auxTimeout)
	defer cancel()

	if err := f.timed(ctx, aux, recipient, payload); err != nil {
		if f.metrics != nil {
			f.metrics.DispatchFailures.WithLabelValues(aux.name).Inc()
		}
		f.logger.Error(err, "auxiliary dispatch failed", "channel", aux.name, "template", payload.TemplateID())
	}
}

func (f *Fanout) timed(ctx context.Context, nd namedDispatcher, recipient model.Recipient, payload model.NotificationPayload) error {
	if f.metrics == nil {
		return nd.d.Dispatch(ctx, recipient, payload)
	}
	timer := prometheus.NewTimer(f.metrics.DispatchLatency.WithLabelValues(nd.name))
	defer timer.ObserveDuration()
	return nd.d.Dispatch(ctx, recipient, payload)
}
