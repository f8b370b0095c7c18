package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sheikh-saqib/peer-transfer-ledger/internal/tracking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveOperation(t *testing.T) {
	r := NewRecorder()

	r.ObserveOperation("transfer", "ok", 20*time.Millisecond)
	r.ObserveOperation("transfer", "ok", 30*time.Millisecond)
	r.ObserveOperation("transfer", "InsufficientFunds", time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.operations.WithLabelValues("transfer", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.operations.WithLabelValues("transfer", "InsufficientFunds")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestTrackFollowsCoordinator(t *testing.T) {
	r := NewRecorder()
	c := tracking.NewCoordinator(tracking.WithSafetyTimeout(time.Minute))
	defer c.Close()

	r.Track(c)
	defer r.Close()

	assert.Equal(t, 0.0, testutil.ToFloat64(r.busy))

	c.Begin("a")
	c.Begin("b")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.busy))
	assert.Equal(t, 2.0, r.inFlight())

	c.End("a")
	c.End("b")
	assert.Equal(t, 0.0, testutil.ToFloat64(r.busy))
	assert.Equal(t, 0.0, r.inFlight())
}

func TestCloseStopsTracking(t *testing.T) {
	r := NewRecorder()
	c := tracking.NewCoordinator(tracking.WithSafetyTimeout(time.Minute))
	defer c.Close()

	r.Track(c)
	r.Close()

	c.Begin("a")
	assert.Equal(t, 0.0, testutil.ToFloat64(r.busy))
	assert.Equal(t, 0.0, r.inFlight())
}

func TestForcedReleaseViaTimeoutHook(t *testing.T) {
	r := NewRecorder()
	c := tracking.NewCoordinator(
		tracking.WithSafetyTimeout(10*time.Millisecond),
		tracking.WithTimeoutHook(r.ForcedRelease),
	)
	defer c.Close()

	c.Begin("slow")

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(r.forcedReleases) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHandlerServesMetrics(t *testing.T) {
	r := NewRecorder()
	r.ObserveOperation("dashboard", "ok", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ledger_operations_total{op="dashboard",outcome="ok"} 1`)
	assert.Contains(t, string(body), "ledger_requests_in_flight 0")
}
