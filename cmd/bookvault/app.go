package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/veranemoloko/bookvault/internal/cache"
	"github.com/veranemoloko/bookvault/internal/config"
	"github.com/veranemoloko/bookvault/internal/remote"
	"github.com/veranemoloko/bookvault/internal/service"
	"github.com/veranemoloko/bookvault/internal/storage"
	"github.com/veranemoloko/bookvault/internal/worker"
)

// app holds the wired components shared by all commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	resources *service.ResourceService
	metadata  *cache.MetadataCache
	client    *remote.Client
	archive   *service.ArchiveService
}

func newApp(opts *rootOptions, logOut io.Writer) (*app, error) {
	cfg, err := config.Load(opts.envFile)
	if err != nil {
		return nil, err
	}

	logger := config.NewLogger(logOut, cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)
	logger.Debug("configuration loaded", "environment", cfg.Environment)

	metadata, err := cache.NewMetadataCache(cfg.MetadataCache)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		resources: service.NewResourceService(cfg, logger),
		metadata:  metadata,
	}, nil
}

// resolveAPIRoot picks the content API root. An explicit setting wins; otherwise
// the root comes from api.json in the resource cache. A sync always starts in
// the background; when api.json is missing the first sync is awaited.
func (a *app) resolveAPIRoot(ctx context.Context) (string, error) {
	go a.syncInBackground(ctx)

	if a.cfg.APIRootURL != "" {
		return a.cfg.APIRootURL, nil
	}

	if !a.resources.HasResource("api.json") {
		a.logger.Info("resource cache is empty, waiting for first sync")
		select {
		case <-a.resources.Done():
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	root, err := a.resources.APIRootURL()
	if err != nil {
		return "", fmt.Errorf("resolve api root: %w", err)
	}
	return root, nil
}

func (a *app) syncInBackground(ctx context.Context) {
	if _, err := a.resources.Sync(ctx); err != nil {
		a.logger.Warn("background resource sync failed", "error", err)
	}
}

// connect builds the remote client and the archive service on top of it.
// An empty root leaves the archive usable for local reads only.
func (a *app) connect(rootURL string) {
	a.client = remote.NewClient(rootURL,
		remote.WithTimeout(a.cfg.RequestTimeout),
		remote.WithRateLimit(a.cfg.RequestsPerSec),
		remote.WithLogger(a.logger),
	)

	files := storage.NewFileStorage(a.cfg.ArchiveDir)
	chapterWorker := worker.NewChapterWorker(a.client, files, a.cfg.ChapterRetries, a.cfg.RetryDelay, a.logger)
	a.archive = service.NewArchiveService(
		storage.NewTaskStorage(),
		files,
		a.client,
		chapterWorker,
		a.metadata,
		a.logger,
	)
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.archive != nil {
		if err := a.archive.Shutdown(ctx); err != nil {
			a.logger.Error("archive shutdown failed", "error", err)
		}
	}
	a.metadata.Close()
}

// progressInterval is how often the download command reports progress.
const progressInterval = 500 * time.Millisecond
