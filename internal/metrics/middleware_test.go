package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/progress", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{}"))
	})
	r.Get("/v1/outcomes", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	okBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	badBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "400"))
	missBefore := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404"))

	for _, path := range []string{"/v1/progress", "/v1/outcomes", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")), 0.001)
	assert.InDelta(t, badBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "400")), 0.001)
	assert.InDelta(t, missBefore+1, testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")), 0.001)
}

func TestRouteOfUnmatched(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "unmatched", routeOf(httptest.NewRequest(http.MethodGet, "/x", nil)))
}
