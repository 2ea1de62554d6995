package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)

	c.ObserveClassification("sequence", time.Millisecond)
	c.ObserveClassification("sequence", time.Millisecond)
	c.ObserveClassification("pie", time.Millisecond)
	c.ObserveFailure("broken", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.classifications.WithLabelValues("sequence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.classifications.WithLabelValues("pie")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("broken")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestCollector_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewCollector(reg)
	require.NoError(t, err)

	_, err = NewCollector(reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "register metrics")
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveClassification("x", time.Second)
		c.ObserveFailure("x", time.Second)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewCollector(reg)
	require.NoError(t, err)
	c.ObserveClassification("gantt", time.Microsecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `diagramtype_classifications_total{key="gantt"} 1`))
}
