package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/imroc/req/v3"
	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/bookvault/internal/config"
	"github.com/veranemoloko/bookvault/internal/domain"
	errpkg "github.com/veranemoloko/bookvault/internal/errors"
	"github.com/veranemoloko/bookvault/internal/metrics"
	"github.com/veranemoloko/bookvault/internal/storage"
	"github.com/veranemoloko/bookvault/internal/validation"
)

const apiConfigFile = "api.json"

// ResourceService mirrors the remote resource tree described by a path to hash
// manifest into the local resource directory.
type ResourceService struct {
	cfg       *config.Config
	resources *storage.FileStorage
	manifest  *storage.FileStorage
	strict    *req.Client
	insecure  *req.Client
	logger    *slog.Logger

	syncMu   sync.Mutex
	doneOnce sync.Once
	done     chan struct{}
}

func NewResourceService(cfg *config.Config, logger *slog.Logger) *ResourceService {
	return &ResourceService{
		cfg:       cfg,
		resources: storage.NewFileStorage(cfg.ResourceDir),
		manifest:  storage.NewFileStorage(filepath.Dir(cfg.ManifestFile)),
		strict:    req.C().SetTimeout(cfg.RequestTimeout),
		insecure:  req.C().SetTimeout(cfg.RequestTimeout).EnableInsecureSkipVerify(),
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Done is closed once the first sync has finished, successfully or not.
func (s *ResourceService) Done() <-chan struct{} {
	return s.done
}

func (s *ResourceService) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Sync fetches the manifest and downloads every listed resource that is not
// present locally. When the manifest cannot be fetched or parsed, local state
// is left untouched and the error is returned. Failing to save the manifest
// copy is only logged.
func (s *ResourceService) Sync(ctx context.Context) (domain.SyncReport, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()
	defer s.markDone()

	var report domain.SyncReport

	body, err := s.fetch(ctx, s.cfg.ManifestURL)
	if err != nil {
		metrics.ResourceSyncFailures.Inc()
		s.logger.Warn("resource manifest unavailable", "url", s.cfg.ManifestURL, "error", err)
		return report, err
	}

	var manifest domain.ResourceManifest
	if err := json.Unmarshal(body, &manifest); err != nil {
		metrics.ResourceSyncFailures.Inc()
		s.logger.Warn("resource manifest malformed", "error", err)
		return report, errpkg.Invalid("malformed manifest: %v", err)
	}
	if err := validation.ValidateManifest(manifest); err != nil {
		metrics.ResourceSyncFailures.Inc()
		s.logger.Warn("resource manifest rejected", "error", err)
		return report, err
	}

	if err := s.manifest.WriteFile(filepath.Base(s.cfg.ManifestFile), body); err != nil {
		s.logger.Warn("failed to save resource manifest", "path", s.cfg.ManifestFile, "error", err)
	}

	paths := make([]string, 0, len(manifest))
	for p := range manifest {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var fetched, skipped, failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.ResourceWorkers)

	for _, rel := range paths {
		if s.resources.FileExists(rel) {
			skipped.Add(1)
			continue
		}

		g.Go(func() error {
			if err := s.fetchResource(ctx, rel); err != nil {
				failed.Add(1)
				s.logger.Warn("resource fetch failed", "path", rel, "error", err)
				return nil
			}
			fetched.Add(1)
			metrics.ResourcesFetched.Inc()
			return nil
		})
	}
	_ = g.Wait()

	report = domain.SyncReport{
		Fetched: int(fetched.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}
	s.logger.Info("resource sync finished",
		"entries", len(manifest),
		"fetched", report.Fetched,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *ResourceService) fetchResource(ctx context.Context, rel string) error {
	u, err := s.cfg.ResourceURL(rel)
	if err != nil {
		return fmt.Errorf("build resource url: %w", err)
	}
	data, err := s.fetch(ctx, u)
	if err != nil {
		return err
	}
	return s.resources.WriteFile(rel, data)
}

// fetch downloads url with certificate verification. When the configuration
// allows it, a request that failed before any response arrived is repeated
// once with an unverified client. HTTP status errors are never retried.
func (s *ResourceService) fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := get(ctx, s.strict, url)
	if err == nil || !s.cfg.AllowInsecureFallback || !noResponse(err) {
		return data, err
	}

	s.logger.Warn("retrying without certificate verification", "url", url, "error", err)
	return get(ctx, s.insecure, url)
}

func noResponse(err error) bool {
	var te *errpkg.TransportError
	return errors.As(err, &te) && te.StatusCode == 0
}

func get(ctx context.Context, client *req.Client, url string) ([]byte, error) {
	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, &errpkg.TransportError{Op: "GET", URL: url, Err: err}
	}
	if !resp.IsSuccessState() {
		return nil, &errpkg.TransportError{Op: "GET", URL: url, StatusCode: resp.StatusCode}
	}
	data, err := resp.ToBytes()
	if err != nil {
		return nil, &errpkg.TransportError{Op: "GET", URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

// ResourcePath returns the local path of a resource.
func (s *ResourceService) ResourcePath(rel string) (string, error) {
	return s.resources.Path(rel)
}

// HasResource reports whether a resource exists locally.
func (s *ResourceService) HasResource(rel string) bool {
	return s.resources.FileExists(rel)
}

// LoadManifest returns the last manifest written by Sync.
func (s *ResourceService) LoadManifest() (domain.ResourceManifest, error) {
	var manifest domain.ResourceManifest
	if err := s.manifest.ReadJSON(filepath.Base(s.cfg.ManifestFile), &manifest); err != nil {
		return nil, err
	}
	return manifest, nil
}

// APIRootURL reads the content API root from the cached api.json resource.
func (s *ResourceService) APIRootURL() (string, error) {
	var api struct {
		RootURL string `json:"rootUrl"`
	}
	if err := s.resources.ReadJSON(apiConfigFile, &api); err != nil {
		return "", err
	}
	if api.RootURL == "" {
		return "", errpkg.Invalid("%s has no rootUrl", apiConfigFile)
	}
	return api.RootURL, nil
}
