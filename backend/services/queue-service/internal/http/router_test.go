package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRouterGuardsPrivateRoutesAndMethods(t *testing.T) {
	ok := func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	router := NewRouter(Routes{QueueJoin: ok, StationQueue: ok, Health: ok}, deny)

	cases := []struct {
		method, path string
		status       int
	}{
		{http.MethodPost, "/queue/join", http.StatusUnauthorized},
		{http.MethodGet, "/stations/queue", http.StatusOK},
		{http.MethodPost, "/stations/queue", http.StatusMethodNotAllowed},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/queue/leave", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, tc.method+" "+tc.path)
	}
}
