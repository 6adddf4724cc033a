package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veranemoloko/bookvault/internal/config"
	errpkg "github.com/veranemoloko/bookvault/internal/errors"
)

type resourceServer struct {
	mu       sync.Mutex
	manifest string
	files    map[string]string
	hits     map[string]int
}

func (rs *resourceServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.hits == nil {
		rs.hits = make(map[string]int)
	}
	rs.hits[r.URL.Path]++

	if r.URL.Path == "/res/.files.json" {
		if rs.manifest == "" {
			http.Error(w, "gone", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(rs.manifest))
		return
	}
	body, ok := rs.files[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (rs *resourceServer) hitCount(p string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[p]
}

func newResourceConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	dir := makeTempDir(t, "resourceservice_*")
	return &config.Config{
		ResourceDir:     filepath.Join(dir, "Resources"),
		ManifestFile:    filepath.Join(dir, ".files.json"),
		ManifestURL:     baseURL + "/res/.files.json",
		ResourceWorkers: 2,
		RequestTimeout:  5 * time.Second,
	}
}

func TestResourceService_SyncFetchesMissingFiles(t *testing.T) {
	rs := &resourceServer{
		manifest: `{"icon.png":"hashA","theme.css":"hashB"}`,
		files: map[string]string{
			"/res/icon.png":  "PNG",
			"/res/theme.css": "body{}",
		},
	}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	require.NoError(t, os.MkdirAll(cfg.ResourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ResourceDir, "icon.png"), []byte("local"), 0o644))

	svc := NewResourceService(cfg, newTestLogger())
	report, err := svc.Sync(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 0, rs.hitCount("/res/icon.png"), "present files must not be re-fetched")

	css, err := os.ReadFile(filepath.Join(cfg.ResourceDir, "theme.css"))
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(css))

	icon, err := os.ReadFile(filepath.Join(cfg.ResourceDir, "icon.png"))
	require.NoError(t, err)
	assert.Equal(t, "local", string(icon))

	raw, err := os.ReadFile(cfg.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, rs.manifest, string(raw))

	manifest, err := svc.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, "hashB", manifest["theme.css"])

	select {
	case <-svc.Done():
	default:
		t.Fatal("expected Done to be closed")
	}
}

func TestResourceService_NestedPathsAndPartialFailure(t *testing.T) {
	rs := &resourceServer{
		manifest: `{"img/a/b.png":"h1","missing.txt":"h2"}`,
		files:    map[string]string{"/res/img/a/b.png": "B"},
	}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	svc := NewResourceService(cfg, newTestLogger())

	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, report.Failed)
	assert.True(t, svc.HasResource("img/a/b.png"))
	assert.False(t, svc.HasResource("missing.txt"))

	p, err := svc.ResourcePath("img/a/b.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.ResourceDir, "img", "a", "b.png"), p)
}

func TestResourceService_ManifestFailureLeavesStateUntouched(t *testing.T) {
	rs := &resourceServer{}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	require.NoError(t, os.WriteFile(cfg.ManifestFile, []byte(`{"old":"x"}`), 0o644))

	svc := NewResourceService(cfg, newTestLogger())
	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errpkg.IsTransport(err))

	raw, err := os.ReadFile(cfg.ManifestFile)
	require.NoError(t, err)
	assert.Equal(t, `{"old":"x"}`, string(raw))

	select {
	case <-svc.Done():
	default:
		t.Fatal("expected Done to be closed after a failed sync")
	}
}

func TestResourceService_RejectsEscapingManifest(t *testing.T) {
	rs := &resourceServer{manifest: `{"../evil.sh":"h"}`}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	svc := NewResourceService(cfg, newTestLogger())

	_, err := svc.Sync(context.Background())
	assert.True(t, errpkg.IsValidation(err), "got %v", err)

	_, statErr := os.Stat(cfg.ManifestFile)
	assert.True(t, os.IsNotExist(statErr))
	assert.Equal(t, 0, rs.hitCount("/evil.sh"))
}

func TestResourceService_MalformedManifest(t *testing.T) {
	rs := &resourceServer{manifest: `not json`}
	server := httptest.NewServer(rs)
	defer server.Close()

	svc := NewResourceService(newResourceConfig(t, server.URL), newTestLogger())
	_, err := svc.Sync(context.Background())
	assert.True(t, errpkg.IsValidation(err), "got %v", err)
}

func TestResourceService_InsecureFallback(t *testing.T) {
	rs := &resourceServer{
		manifest: `{"icon.png":"hashA"}`,
		files:    map[string]string{"/res/icon.png": "PNG"},
	}
	server := httptest.NewTLSServer(rs)
	defer server.Close()

	t.Run("disabled", func(t *testing.T) {
		cfg := newResourceConfig(t, server.URL)
		svc := NewResourceService(cfg, newTestLogger())

		_, err := svc.Sync(context.Background())
		require.Error(t, err)
		assert.False(t, svc.HasResource("icon.png"))
	})

	t.Run("enabled", func(t *testing.T) {
		cfg := newResourceConfig(t, server.URL)
		cfg.AllowInsecureFallback = true
		svc := NewResourceService(cfg, newTestLogger())

		report, err := svc.Sync(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, report.Fetched)
		assert.True(t, svc.HasResource("icon.png"))
	})
}

func TestResourceService_StatusErrorDoesNotFallBack(t *testing.T) {
	rs := &resourceServer{}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	cfg.AllowInsecureFallback = true
	svc := NewResourceService(cfg, newTestLogger())

	_, err := svc.Sync(context.Background())
	require.Error(t, err)
	assert.True(t, errpkg.IsTransport(err))
	assert.Equal(t, 1, rs.hitCount("/res/.files.json"), "a 503 must not be repeated without verification")
}

func TestResourceService_ManifestWriteFailureStillFetches(t *testing.T) {
	rs := &resourceServer{
		manifest: `{"icon.png":"hashA"}`,
		files:    map[string]string{"/res/icon.png": "PNG"},
	}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	// A directory in place of the manifest file makes the save fail.
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.ManifestFile, "occupied"), 0o755))
	svc := NewResourceService(cfg, newTestLogger())

	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.True(t, svc.HasResource("icon.png"))

	_, err = svc.LoadManifest()
	assert.Error(t, err)
}

func TestResourceService_APIRootURL(t *testing.T) {
	cfg := newResourceConfig(t, "http://127.0.0.1:1")
	svc := NewResourceService(cfg, newTestLogger())

	_, err := svc.APIRootURL()
	assert.True(t, errpkg.IsNotFound(err))

	require.NoError(t, os.MkdirAll(cfg.ResourceDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ResourceDir, "api.json"), []byte(`{"rootUrl":"http://api.local:9999"}`), 0o644))

	root, err := svc.APIRootURL()
	require.NoError(t, err)
	assert.Equal(t, "http://api.local:9999", root)
}

func TestResourceService_ResourceBaseOverride(t *testing.T) {
	rs := &resourceServer{
		manifest: `{"icon.png":"hashA"}`,
		files:    map[string]string{"/cdn/icon.png": "CDN"},
	}
	server := httptest.NewServer(rs)
	defer server.Close()

	cfg := newResourceConfig(t, server.URL)
	cfg.ResourceBaseURL = server.URL + "/cdn"
	svc := NewResourceService(cfg, newTestLogger())

	report, err := svc.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Fetched)
	assert.Equal(t, 1, rs.hitCount("/cdn/icon.png"))
}
