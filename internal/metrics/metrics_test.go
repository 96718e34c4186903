package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	require.NotNil(t, m.Rows)
	require.NotNil(t, m.HTTPRequests)
	assert.Same(t, registry, m.Registry())

	m.RowTransformed()
	m.ObserveTransform(time.Millisecond)

	families, err := registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestObserverCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RowTransformed()
	m.RowTransformed()
	m.RowFailed([]string{"InvalidDate"})
	m.RowFailed([]string{"InvalidDate", "MissingField"})
	m.FileProcessed(FileSucceeded)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rows.WithLabelValues(OutcomeTransformed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Rows.WithLabelValues(OutcomeFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RowErrors.WithLabelValues("InvalidDate")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RowErrors.WithLabelValues("MissingField")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Files.WithLabelValues(FileSucceeded)))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.RowFailed([]string{"UnrecognizedCategory"})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `reformatter_row_errors_total{kind="UnrecognizedCategory"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
