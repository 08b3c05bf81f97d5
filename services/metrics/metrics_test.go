package metrics

import (
	"errors"
	"io/ioutil"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	m := New()

	m.ObserveFetch("main", nil)
	m.ObserveFetch("main", nil)
	m.ObserveFetch("change", errors.New("boom"))
	m.ObserveProxy("GET", 200)
	m.ObserveDerivation(3 * time.Millisecond)
	m.SetToolCounts(4, 2)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.upstreamFetches.WithLabelValues("main", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.upstreamFetches.WithLabelValues("change", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.proxyRequests.WithLabelValues("GET", "200")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.tools.WithLabelValues("active")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tools.WithLabelValues("stopped")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := ioutil.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mdii_derivation_duration_seconds_count 1")
	assert.Contains(t, string(body), `mdii_upstream_fetch_total{form="main",outcome="ok"} 2`)
}
