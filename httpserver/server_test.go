package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/snippet-provisioning-backend/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingRoutes struct{}

func (pingRoutes) RegisterRoutes(r chi.Router) {
	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
}

func newTestServer(t *testing.T, pprof bool) *Server {
	t.Helper()
	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:  "127.0.0.1:0",
		EnablePprof: pprof,
		Log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, pingRoutes{})
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	w := get(t, h, "/api/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())

	w = get(t, h, "/livez")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"alive"}`, w.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, h, "/debug/pprof/").Code)
}

func TestServer_DrainUndrain(t *testing.T) {
	srv := newTestServer(t, false)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)

	w := get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"draining"}`, w.Body.String())
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	w = get(t, h, "/drain")
	assert.JSONEq(t, `{"status":"already draining"}`, w.Body.String())

	w = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"ready"}`, w.Body.String())
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)

	w = get(t, h, "/undrain")
	assert.JSONEq(t, `{"status":"already ready"}`, w.Body.String())
}

func TestServer_Pprof(t *testing.T) {
	srv := newTestServer(t, true)
	assert.Equal(t, http.StatusOK, get(t, srv.Handler(), "/debug/pprof/").Code)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(&api.HTTPServerConfig{
		Log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, pingRoutes{})
	assert.ErrorIs(t, err, api.ErrInvalidServerConfig)
}
