package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordProvisioning(t *testing.T) {
	before := testutil.ToFloat64(provisioningRequestsTotal.WithLabelValues("gold", "success"))
	RecordProvisioning("gold", "success", 120*time.Millisecond)
	after := testutil.ToFloat64(provisioningRequestsTotal.WithLabelValues("gold", "success"))
	assert.Equal(t, before+1, after)
}

func TestRecordSkippedBundle(t *testing.T) {
	before := testutil.ToFloat64(catalogSkippedBundlesTotal)
	RecordSkippedBundle()
	assert.Equal(t, before+1, testutil.ToFloat64(catalogSkippedBundlesTotal))
}

func TestMetricsServerHandler(t *testing.T) {
	srv, err := New("snippet_provisioner", "127.0.0.1:0")
	require.NoError(t, err)

	RecordFleetCall("login", "ok", 5*time.Millisecond)

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `snippet_provisioner_fleet_calls_total{op="login",result="ok"}`)
	assert.Contains(t, body, `snippet_provisioner_build_info{app="snippet_provisioner"`)
}
