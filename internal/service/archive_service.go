package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/veranemoloko/bookvault/internal/cache"
	"github.com/veranemoloko/bookvault/internal/codec"
	"github.com/veranemoloko/bookvault/internal/domain"
	errpkg "github.com/veranemoloko/bookvault/internal/errors"
	"github.com/veranemoloko/bookvault/internal/metrics"
	"github.com/veranemoloko/bookvault/internal/storage"
	"github.com/veranemoloko/bookvault/internal/validation"
	"github.com/veranemoloko/bookvault/internal/worker"
)

const infoFile = "info.json"

// WorkSource provides the metadata and chapter list of a remote work.
type WorkSource interface {
	FetchWork(ctx context.Context, workID string) (*domain.Work, error)
	FetchCatalog(ctx context.Context, workID string) ([]domain.ChapterDescriptor, error)
}

// ArchiveService owns the download tasks and the on-disk archive.
type ArchiveService struct {
	taskStorage *storage.TaskStorage
	fileStorage *storage.FileStorage
	source      WorkSource
	worker      *worker.ChapterWorker
	metadata    *cache.MetadataCache
	logger      *slog.Logger

	wg      sync.WaitGroup
	mu      sync.Mutex
	running map[string]chan struct{}
	closing bool
}

func NewArchiveService(
	taskStorage *storage.TaskStorage,
	fileStorage *storage.FileStorage,
	source WorkSource,
	worker *worker.ChapterWorker,
	metadata *cache.MetadataCache,
	logger *slog.Logger,
) *ArchiveService {
	return &ArchiveService{
		taskStorage: taskStorage,
		fileStorage: fileStorage,
		source:      source,
		worker:      worker,
		metadata:    metadata,
		logger:      logger,
		running:     make(map[string]chan struct{}),
	}
}

// RequestDownload starts archiving workID unless a download for it is already
// running. It never blocks on network work.
func (s *ArchiveService) RequestDownload(workID string, skipExisting bool) (domain.DownloadResult, error) {
	if err := validation.ValidateID("work id", workID); err != nil {
		return domain.DownloadResult{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closing {
		return domain.DownloadResult{}, errpkg.ErrShuttingDown
	}

	snap, started := s.taskStorage.Begin(workID, skipExisting)
	if !started {
		metrics.TasksRejected.Inc()
		s.logger.Debug("download request rejected",
			"work_id", workID,
			"run_id", snap.RunID,
			"error", errpkg.ErrConcurrencyConflict,
		)
		return domain.DownloadResult{Accepted: false, Task: snap}, nil
	}

	metrics.TasksCreated.Inc()
	s.logger.Info("download started",
		"work_id", workID,
		"run_id", snap.RunID,
		"skip_existing", skipExisting,
	)

	done := make(chan struct{})
	s.running[workID] = done

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(workID, done)
		s.process(workID, skipExisting, snap)
	}()

	return domain.DownloadResult{Accepted: true, Task: snap}, nil
}

func (s *ArchiveService) finish(workID string, done chan struct{}) {
	s.mu.Lock()
	if s.running[workID] == done {
		delete(s.running, workID)
	}
	s.mu.Unlock()
	close(done)
}

func (s *ArchiveService) process(workID string, skipExisting bool, snap domain.TaskSnapshot) {
	logger := s.logger.With("work_id", workID, "run_id", snap.RunID)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("download panicked", "panic", r)
			s.fail(workID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := s.archive(context.Background(), workID, skipExisting, logger); err != nil {
		logger.Error("download failed", "error", err)
		s.fail(workID, err)
		return
	}

	s.taskStorage.Update(workID, func(task *domain.DownloadTask) {
		task.Complete()
	})
	metrics.TasksCompleted.Inc()
	logger.Info("download completed")
}

func (s *ArchiveService) fail(workID string, err error) {
	s.taskStorage.Update(workID, func(task *domain.DownloadTask) {
		task.Fail(err)
	})
	metrics.TasksFailed.Inc()
}

func (s *ArchiveService) archive(ctx context.Context, workID string, skipExisting bool, logger *slog.Logger) error {
	work, err := s.source.FetchWork(ctx, workID)
	if err != nil {
		return fmt.Errorf("fetch metadata: %w", err)
	}
	chapters, err := s.source.FetchCatalog(ctx, workID)
	if err != nil {
		return fmt.Errorf("fetch chapter list: %w", err)
	}
	if len(chapters) == 0 {
		return errpkg.ErrNoChapters
	}

	work.ID = workID
	work.Chapters = chapters

	dir, err := s.fileStorage.MkdirAll(workID)
	if err != nil {
		return err
	}

	s.taskStorage.Update(workID, func(task *domain.DownloadTask) {
		task.Work = work.Clone()
		task.Chapters = work.Chapters
		task.Path = dir
	})

	if err := s.fileStorage.WriteJSON(workID+"/"+infoFile, work); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	s.metadata.Invalidate(workID)

	logger.Info("chapter list fetched", "title", work.Title, "chapters", len(chapters))

	for i, chapter := range chapters {
		if skipExisting && s.worker.Exists(workID, chapter.ID) {
			metrics.ChaptersSkipped.Inc()
			s.advance(workID, i)
			continue
		}

		if err := s.worker.Download(ctx, workID, chapter); err != nil {
			metrics.ChaptersFailed.Inc()
			logger.Error("chapter abandoned",
				"chapter_id", chapter.ID,
				"title", chapter.Title,
				"error", err,
			)
			continue
		}

		metrics.ChaptersSaved.Inc()
		s.advance(workID, i)
	}

	return nil
}

func (s *ArchiveService) advance(workID string, index int) {
	s.taskStorage.Update(workID, func(task *domain.DownloadTask) {
		task.Advance(index)
	})
}

// ListTasks returns snapshots of all known tasks.
func (s *ArchiveService) ListTasks() []domain.TaskSnapshot {
	return s.taskStorage.GetAll()
}

// GetTask returns the snapshot of the task for workID.
func (s *ArchiveService) GetTask(workID string) (domain.TaskSnapshot, error) {
	snap, ok := s.taskStorage.Get(workID)
	if !ok {
		return domain.TaskSnapshot{}, errpkg.NotFound("task", workID)
	}
	return snap, nil
}

// Wait blocks until the task for workID is no longer downloading and returns
// its final snapshot.
func (s *ArchiveService) Wait(ctx context.Context, workID string) (domain.TaskSnapshot, error) {
	s.mu.Lock()
	done, ok := s.running[workID]
	s.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return domain.TaskSnapshot{}, ctx.Err()
		}
	}
	return s.GetTask(workID)
}

// ArchiveRoot returns the directory holding archived works.
func (s *ArchiveService) ArchiveRoot() string {
	return s.fileStorage.Root()
}

// ListArchivedWorkIDs returns the ids of works with readable metadata, sorted.
func (s *ArchiveService) ListArchivedWorkIDs() ([]string, error) {
	dirs, err := s.fileStorage.ListDirs()
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if _, err := s.WorkMetadata(dir); err != nil {
			s.logger.Debug("skipping archive entry", "dir", dir, "error", err)
			continue
		}
		ids = append(ids, dir)
	}
	return ids, nil
}

// WorkMetadata returns the stored metadata of an archived work.
func (s *ArchiveService) WorkMetadata(workID string) (*domain.Work, error) {
	if err := validation.ValidateID("work id", workID); err != nil {
		return nil, err
	}
	if work, ok := s.metadata.Get(workID); ok {
		return work, nil
	}

	gen := s.metadata.Generation(workID)
	var work domain.Work
	if err := s.fileStorage.ReadJSON(workID+"/"+infoFile, &work); err != nil {
		if errpkg.IsNotFound(err) {
			return nil, errpkg.NotFound("work", workID)
		}
		return nil, err
	}

	s.metadata.Store(workID, gen, &work)
	return &work, nil
}

// Chapter returns the decoded content of a stored chapter with the ids of its
// neighbours in chapter list order. Without readable metadata both neighbours
// are nil.
func (s *ArchiveService) Chapter(workID, chapterID string) (domain.ChapterView, error) {
	if err := validation.ValidateID("work id", workID); err != nil {
		return domain.ChapterView{}, err
	}
	if err := validation.ValidateID("chapter id", chapterID); err != nil {
		return domain.ChapterView{}, err
	}

	var record domain.ChapterRecord
	if err := s.fileStorage.ReadJSON(worker.RecordName(workID, chapterID), &record); err != nil {
		if errpkg.IsNotFound(err) {
			return domain.ChapterView{}, errpkg.NotFound("chapter", chapterID)
		}
		return domain.ChapterView{}, err
	}

	view := domain.ChapterView{
		ID:      chapterID,
		Title:   record.Title,
		Content: codec.Decode(record.Content, chapterID),
	}

	work, err := s.WorkMetadata(workID)
	switch {
	case err == nil:
		view.Previous, view.Next = work.Neighbours(chapterID)
	case errpkg.IsNotFound(err):
		s.logger.Debug("chapter read without metadata", "work_id", workID, "chapter_id", chapterID)
	default:
		return domain.ChapterView{}, err
	}
	return view, nil
}

// Shutdown stops accepting downloads and waits for running ones to finish.
func (s *ArchiveService) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down archive service")

	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("archive service shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("archive service shutdown timed out")
		return ctx.Err()
	}
}
