package gcs_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/heir-finder/internal/storage/gcs"
)

func newTestStore(t *testing.T, handler http.Handler) *gcs.BlobStore {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	store, err := gcs.Dial(context.Background(), gcs.Config{Bucket: "leads-bucket", Endpoint: server.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPutObject(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/leads-bucket/o")
		assert.Equal(t, "runs/r1/leads.csv", r.URL.Query().Get("name"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "Owner,Account")
		assert.Contains(t, string(body), `"sha256":"abc"`)

		_, _ = fmt.Fprintln(w, `{"name":"runs/r1/leads.csv","bucket":"leads-bucket"}`)
	})
	store := newTestStore(t, handler)

	uri, err := store.PutObject(context.Background(), "runs/r1/leads.csv", "text/csv",
		map[string]string{"sha256": "abc"}, strings.NewReader("Owner,Account\n"))
	require.NoError(t, err)
	assert.Equal(t, "gs://leads-bucket/runs/r1/leads.csv", uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := store.PutObject(context.Background(), "x.txt", "text/plain", nil, strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, http.NotFoundHandler())
	_, err := store.PutObject(context.Background(), "  ", "", nil, strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	require.Error(t, err)

	_, err = gcs.Dial(context.Background(), gcs.Config{Endpoint: "http://127.0.0.1:1"})
	require.Error(t, err)
}
