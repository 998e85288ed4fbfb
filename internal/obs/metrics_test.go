package obs

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveRedemption_CountsByResult(t *testing.T) {
	before := testutil.ToFloat64(redemptionsTotal.WithLabelValues("quota_exhausted"))

	ObserveRedemption("quota_exhausted")
	ObserveRedemption("quota_exhausted")

	after := testutil.ToFloat64(redemptionsTotal.WithLabelValues("quota_exhausted"))
	assert.Equal(t, before+2, after)
}

func TestRequestFinished_BalancesInFlight(t *testing.T) {
	before := testutil.ToFloat64(httpInFlight)

	RequestStarted()
	assert.Equal(t, before+1, testutil.ToFloat64(httpInFlight))
	RequestFinished("GET", "/downloads/:token", "200", 10*time.Millisecond)

	assert.Equal(t, before, testutil.ToFloat64(httpInFlight))
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	Init()
	Init()
	ObserveGrantsIssued(1)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "download_grants_issued_total")
}
