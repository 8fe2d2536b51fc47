package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upcat-dev/upcat/internal/bom"
	"github.com/upcat-dev/upcat/internal/config"
	"github.com/upcat-dev/upcat/internal/fetch"
	"github.com/upcat-dev/upcat/internal/policy"
	"github.com/upcat-dev/upcat/internal/registry"
)

const testCatalog = `[versions]
# https://search.maven.org @^5.10.0
junit = "5.10.0"
guava = "32.1.0-jre"
kotlin = "1.9.22"

[libraries]
junit-jupiter = { module = "org.junit.jupiter:junit-jupiter", version.ref = "junit" }
guava = { module = "com.google.guava:guava", version.ref = "guava" }
`

type fakeResolver struct {
	mu       sync.Mutex
	versions map[string][]string
	errs     map[string]error
	delays   map[string]time.Duration
	calls    []string
}

func (f *fakeResolver) Kind() string { return "fake" }

func (f *fakeResolver) FetchVersions(ctx context.Context, group, artifact string) ([]registry.Candidate, error) {
	coord := group + ":" + artifact

	f.mu.Lock()
	f.calls = append(f.calls, coord)
	delay := f.delays[coord]
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err := f.errs[coord]; err != nil {
		return nil, err
	}
	out := make([]registry.Candidate, 0, len(f.versions[coord]))
	for _, v := range f.versions[coord] {
		out = append(out, registry.Candidate{Version: v})
	}
	return out, nil
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{
		versions: map[string][]string{
			"com.google.guava:guava":               {"32.1.0-jre", "33.0.0-jre"},
			"org.junit.jupiter:junit-jupiter":      {"5.10.0", "5.13.4", "6.0.0"},
			"org.springframework.boot:spring-boot": {"3.2.0"},
		},
		errs:   map[string]error{},
		delays: map[string]time.Duration{},
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "libs.versions.toml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalog), 0o644))

	return config.Config{
		CatalogPath: path,
		MaxWorkers:  4,
		Registry: config.Registry{
			Kind:     "central",
			CacheTTL: time.Hour,
			Timeout:  5 * time.Second,
		},
		Libraries: []config.Library{
			{Key: "guava", Group: "com.google.guava", Artifact: "guava", Policy: policy.LegacyLastStable},
		},
		Update: config.Update{BreakOnZeroMinor: true},
	}
}

func newTestCoordinator(t *testing.T, cfg config.Config, r registry.Resolver) *Coordinator {
	t.Helper()
	c, err := New(cfg, WithResolver(r))
	require.NoError(t, err)
	return c
}

func TestCheckResolvesAllRecords(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 3)

	// Configured libraries first, then catalog entries in file order.
	guava := report.Results[0]
	assert.Equal(t, "guava", guava.Key)
	assert.Equal(t, policy.StatusUpdate, guava.Status)
	assert.Equal(t, "33.0.0-jre", guava.Recommended)
	assert.True(t, guava.Breaking)

	junit := report.Results[1]
	assert.Equal(t, "junit", junit.Key)
	assert.Equal(t, policy.StatusUpdate, junit.Status)
	// The caret constraint from the catalog comment caps it below 6.
	assert.Equal(t, "5.13.4", junit.Recommended)

	kotlin := report.Results[2]
	assert.Equal(t, "kotlin", kotlin.Key)
	assert.Equal(t, policy.StatusSkip, kotlin.Status)

	assert.Equal(t, StateReported, c.State())
}

func TestCheckPURLHint(t *testing.T) {
	// The hint names the coordinates directly; no [libraries] entry is
	// needed.
	path := filepath.Join(t.TempDir(), "libs.versions.toml")
	require.NoError(t, os.WriteFile(path, []byte(`[versions]
# pkg:maven/org.slf4j/slf4j-api @^2.0.0
slf4j = "2.0.9"
`), 0o644))

	cfg := testConfig(t)
	cfg.CatalogPath = path
	cfg.Libraries = nil

	r := defaultResolver()
	r.versions["org.slf4j:slf4j-api"] = []string{"2.0.9", "2.0.12", "3.0.0"}
	c := newTestCoordinator(t, cfg, r)

	report, err := c.Check(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Results, 1)

	res := report.Results[0]
	assert.Equal(t, "slf4j", res.Key)
	assert.Equal(t, "org.slf4j:slf4j-api", res.Library)
	assert.Equal(t, policy.StatusUpdate, res.Status)
	assert.Equal(t, "2.0.12", res.Recommended)
}

func TestCheckOrderIndependentOfCompletion(t *testing.T) {
	cfg := testConfig(t)
	r := defaultResolver()
	// The first-declared library finishes last.
	r.delays["com.google.guava:guava"] = 50 * time.Millisecond
	c := newTestCoordinator(t, cfg, r)

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	var keys []string
	for _, res := range report.Results {
		keys = append(keys, res.Key)
	}
	assert.Equal(t, []string{"guava", "junit", "kotlin"}, keys)
}

func TestCheckRegistryFailureIsIsolated(t *testing.T) {
	cfg := testConfig(t)
	r := defaultResolver()
	r.errs["org.junit.jupiter:junit-jupiter"] = errors.New("registry request failed: HTTP 503")
	c := newTestCoordinator(t, cfg, r)

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	assert.Equal(t, policy.StatusNoAPI, report.Results[1].Status)
	// The sibling still resolves.
	assert.Equal(t, policy.StatusUpdate, report.Results[0].Status)
	assert.Equal(t, StateReported, c.State())
}

func TestCheckMissingCatalog(t *testing.T) {
	cfg := testConfig(t)
	cfg.CatalogPath = filepath.Join(t.TempDir(), "absent.toml")
	c := newTestCoordinator(t, cfg, defaultResolver())

	_, err := c.Check(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
}

func TestApplySelection(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	backup, err := c.Apply(report, []string{"junit"})
	require.NoError(t, err)
	assert.Equal(t, StateApplied, c.State())

	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `junit = "5.13.4"`)
	// Unselected entries stay untouched, comments included.
	assert.Contains(t, string(data), `guava = "32.1.0-jre"`)
	assert.Contains(t, string(data), "# https://search.maven.org @^5.10.0")

	require.NotEmpty(t, backup)
	orig, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, testCatalog, string(orig))
	assert.Regexp(t, `libs\.versions\.toml\.backup\.\d{8}_\d{6}$`, backup)
}

func TestApplyAllUpdates(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	_, err = c.Apply(report, nil)
	require.NoError(t, err)

	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `junit = "5.13.4"`)
	assert.Contains(t, string(data), `guava = "33.0.0-jre"`)
	assert.Contains(t, string(data), `kotlin = "1.9.22"`)
}

func TestApplyRequiresReport(t *testing.T) {
	c := newTestCoordinator(t, testConfig(t), defaultResolver())

	_, err := c.Apply(&Report{}, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestApplyNothingSelected(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	backup, err := c.Apply(report, []string{"kotlin"})
	require.NoError(t, err)
	assert.Empty(t, backup)

	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Equal(t, testCatalog, string(data))
}

func TestWriteCatalogRejectsInvalidContent(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	_, err := c.writeCatalog([]byte("[versions\nbroken"))
	require.Error(t, err)

	// Original intact, no backup or temp files left behind.
	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Equal(t, testCatalog, string(data))

	entries, err := os.ReadDir(filepath.Dir(cfg.CatalogPath))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCancel(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.Cancel())
	assert.Equal(t, StateCancelled, c.State())

	_, err = c.Apply(report, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// A fresh check is allowed after cancelling.
	_, err = c.Check(context.Background())
	assert.NoError(t, err)
}

func TestCheckSharedCatalog(t *testing.T) {
	shared := `[versions]
junit = "5.13.4"
slf4j = "2.0.9"
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(shared))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.SharedCatalog = config.SharedCatalog{
		Enabled: true,
		Source:  server.URL + "/libs.versions.toml",
		Trust:   "unverified",
	}
	c, err := New(cfg,
		WithResolver(defaultResolver()),
		WithFetchClient(fetch.NewClient(fetch.WithHTTPClient(server.Client()), fetch.WithMaxRetries(1))),
	)
	require.NoError(t, err)

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	require.NotNil(t, report.CatalogDelta)
	require.Len(t, report.CatalogDelta.Added, 1)
	assert.Equal(t, "slf4j", report.CatalogDelta.Added[0].Key)
	require.Len(t, report.CatalogDelta.Changed, 1)
	assert.Equal(t, "junit", report.CatalogDelta.Changed[0].Key)

	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "unverified")
}

func TestCheckSharedCatalogUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.SharedCatalog = config.SharedCatalog{
		Enabled: true,
		Source:  filepath.Join(t.TempDir(), "missing.toml"),
		Trust:   "verified",
	}
	c := newTestCoordinator(t, cfg, defaultResolver())

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.CatalogError)
	assert.Nil(t, report.CatalogDelta)
	// Library resolution still completed.
	assert.Len(t, report.Results, 3)
	assert.Empty(t, report.Warnings)
}

const testPOM = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <properties>
    <junit-jupiter.version>5.10.1</junit-jupiter.version>
    <slf4j.version>2.0.9</slf4j.version>
  </properties>
</project>
`

func bomTestClient(t *testing.T, handler http.HandlerFunc) (*bom.Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	f := fetch.NewClient(fetch.WithHTTPClient(server.Client()), fetch.WithMaxRetries(1), fetch.WithBaseDelay(time.Millisecond))
	return bom.NewClient(f, server.URL), server.Close
}

func TestCheckBOM(t *testing.T) {
	client, closeServer := bomTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPOM))
	})
	defer closeServer()

	cfg := testConfig(t)
	cfg.SpringBoot = config.SpringBoot{Enabled: true, Version: "3.2.0", Mode: policy.LegacyLastStable}
	c, err := New(cfg, WithResolver(defaultResolver()), WithBOMClient(client))
	require.NoError(t, err)

	report, err := c.Check(context.Background())
	require.NoError(t, err)

	require.Len(t, report.BOMChanges, 2)
	assert.Equal(t, "slf4j", report.BOMChanges[0].Key)
	assert.Equal(t, "junit-jupiter", report.BOMChanges[1].Key)

	// Check never writes the catalog.
	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Equal(t, testCatalog, string(data))
}

func TestCheckBOMPinnedModeSkips(t *testing.T) {
	client, closeServer := bomTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("bom should not be fetched in pinned mode")
	})
	defer closeServer()

	cfg := testConfig(t)
	cfg.SpringBoot = config.SpringBoot{Enabled: true, Version: "3.2.0", Mode: policy.LegacyPinned}
	c, err := New(cfg, WithResolver(defaultResolver()), WithBOMClient(client))
	require.NoError(t, err)

	report, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.BOMChanges)
	assert.Empty(t, report.BOMError)
}

func TestCheckBOMFailureIsIsolated(t *testing.T) {
	client, closeServer := bomTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	defer closeServer()

	cfg := testConfig(t)
	cfg.SpringBoot = config.SpringBoot{Enabled: true, Version: "9.9.9", Mode: policy.LegacyLastStable}
	c, err := New(cfg, WithResolver(defaultResolver()), WithBOMClient(client))
	require.NoError(t, err)

	report, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, report.BOMError)
	assert.Len(t, report.Results, 3)
}

func TestSyncCatalogWrites(t *testing.T) {
	shared := `[versions]
slf4j = "2.0.9"
`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(shared))
	}))
	defer server.Close()

	cfg := testConfig(t)
	cfg.SharedCatalog = config.SharedCatalog{Enabled: true, Source: server.URL, Trust: "verified"}
	c, err := New(cfg,
		WithResolver(defaultResolver()),
		WithFetchClient(fetch.NewClient(fetch.WithHTTPClient(server.Client()), fetch.WithMaxRetries(1))),
	)
	require.NoError(t, err)

	delta, err := c.SyncCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, delta.Added, 1)

	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `slf4j = "2.0.9"`)
}

func TestSyncBOMWrites(t *testing.T) {
	client, closeServer := bomTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testPOM))
	})
	defer closeServer()

	cfg := testConfig(t)
	cfg.SpringBoot = config.SpringBoot{Enabled: true, Version: "3.2.0", Mode: policy.LegacyLastStable}
	c, err := New(cfg, WithResolver(defaultResolver()), WithBOMClient(client))
	require.NoError(t, err)

	changes, err := c.SyncBOM(context.Background())
	require.NoError(t, err)
	require.Len(t, changes, 2)

	data, err := os.ReadFile(cfg.CatalogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `slf4j = "2.0.9"`)
	assert.Contains(t, string(data), `junit-jupiter = "5.10.1"`)
}

func TestCatalogSnapshotIsIndependent(t *testing.T) {
	cfg := testConfig(t)
	c := newTestCoordinator(t, cfg, defaultResolver())

	assert.Nil(t, c.CatalogSnapshot())

	_, err := c.Check(context.Background())
	require.NoError(t, err)

	snap := c.CatalogSnapshot()
	require.NotNil(t, snap)
	require.NoError(t, snap.SetVersion("kotlin", "9.9.9"))

	fresh := c.CatalogSnapshot()
	kotlin, _ := fresh.Version("kotlin")
	assert.Equal(t, "1.9.22", kotlin.Value)
}
