package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcat-dev/upcat/internal/fetch"
)

func testClient(server *httptest.Server) *fetch.Client {
	return fetch.NewClient(
		fetch.WithHTTPClient(server.Client()),
		fetch.WithMaxRetries(1),
		fetch.WithBaseDelay(time.Millisecond),
	)
}

func TestFetchSharedHTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sharedCatalog))
	}))
	defer server.Close()

	doc, err := FetchShared(context.Background(), testClient(server), server.URL+"/libs.versions.toml")
	require.NoError(t, err)

	junit, ok := doc.Version("junit")
	require.True(t, ok)
	assert.Equal(t, "5.13.4", junit.Value)
}

func TestFetchSharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shared.toml")
	require.NoError(t, os.WriteFile(path, []byte(sharedCatalog), 0o644))

	doc, err := FetchShared(context.Background(), nil, path)
	require.NoError(t, err)
	assert.Contains(t, doc.Keys("plugins"), "spotless")
}

func TestFetchSharedUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := FetchShared(context.Background(), testClient(server), server.URL+"/libs.versions.toml")
	assert.ErrorIs(t, err, ErrSourceUnreachable)

	_, err = FetchShared(context.Background(), nil, filepath.Join(t.TempDir(), "missing.toml"))
	assert.ErrorIs(t, err, ErrSourceUnreachable)
}

func TestFetchSharedMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[versions\nbroken"))
	}))
	defer server.Close()

	_, err := FetchShared(context.Background(), testClient(server), server.URL+"/libs.versions.toml")
	assert.ErrorIs(t, err, ErrParse)
}
