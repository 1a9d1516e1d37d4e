package postgres

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/renalcare/capd-api/pkg/metrics"
)

func TestTrackCountsOperationsByStatus(t *testing.T) {
	m := metrics.New("test_" + uuid.New().String()[:8])
	i := instrumented{metrics: m}

	i.track("appointment_get", nil)
	i.track("appointment_get", nil)
	i.track("appointment_get", fmt.Errorf("connection reset"))

	// An empty result set is still a successful round trip.
	i.track("appointment_get", sql.ErrNoRows)

	success := m.DatabaseOperations.WithLabelValues("appointment_get", "success")
	failure := m.DatabaseOperations.WithLabelValues("appointment_get", "error")
	assert.Equal(t, float64(3), testutil.ToFloat64(success))
	assert.Equal(t, float64(1), testutil.ToFloat64(failure))
}

func TestTrackWithoutMetricsIsNoOp(t *testing.T) {
	i := instrumented{}
	assert.NotPanics(t, func() { i.track("patient_get", nil) })
}
