package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func debugRequest(path string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	// tsweb only serves /debug/ to loopback and tailnet peers.
	req.RemoteAddr = "127.0.0.1:40000"
	return req
}

func TestAttachAdminRoutes_AllEndpoints(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	for _, endpoint := range []string{"/debug/tailsql/", "/debug/run-stats"} {
		t.Run(endpoint, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, debugRequest(endpoint))
			if w.Code == http.StatusNotFound {
				t.Errorf("Endpoint %s should be registered, got 404", endpoint)
			}
		})
	}
}

func TestAttachAdminRoutes_RunStats(t *testing.T) {
	s := openTestStore(t)
	sr := buildSeries(t, syntheticBatches(2, 10)...)
	_, err := s.SaveRun(context.Background(), sr, "stats")
	require.NoError(t, err)

	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, debugRequest("/debug/run-stats"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "runs 1\n")
	assert.Contains(t, w.Body.String(), "batches 2\n")
}

func TestAttachAdminRoutes_RejectsRemoteClients(t *testing.T) {
	s := openTestStore(t)
	mux := http.NewServeMux()
	require.NoError(t, s.AttachAdminRoutes(mux))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/debug/run-stats", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDB(t *testing.T) {
	s := openTestStore(t)
	require.NotNil(t, s.DB())
	assert.NoError(t, s.DB().PingContext(context.Background()))
}
