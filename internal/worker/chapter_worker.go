package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/veranemoloko/bookvault/internal/codec"
	"github.com/veranemoloko/bookvault/internal/domain"
	"github.com/veranemoloko/bookvault/internal/metrics"
	"github.com/veranemoloko/bookvault/internal/storage"
	"github.com/veranemoloko/bookvault/internal/validation"
)

// ChapterSource fetches the plain text of a chapter.
type ChapterSource interface {
	FetchChapterText(ctx context.Context, itemID string) (string, error)
}

// ChapterWorker fetches single chapters and stores them in the archive.
type ChapterWorker struct {
	source   ChapterSource
	files    *storage.FileStorage
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// NewChapterWorker creates a ChapterWorker that tries each chapter up to
// attempts times, sleeping delay between attempts.
func NewChapterWorker(source ChapterSource, files *storage.FileStorage, attempts int, delay time.Duration, logger *slog.Logger) *ChapterWorker {
	if attempts < 1 {
		attempts = 1
	}
	return &ChapterWorker{
		source:   source,
		files:    files,
		attempts: attempts,
		delay:    delay,
		logger:   logger,
	}
}

// RecordName returns the archive-relative name of a chapter record.
func RecordName(workID, chapterID string) string {
	return path.Join(workID, chapterID+".json")
}

// Exists reports whether a record for the chapter is already stored.
func (w *ChapterWorker) Exists(workID, chapterID string) bool {
	return w.files.FileExists(RecordName(workID, chapterID))
}

// Download fetches one chapter, masks its content and writes the record.
// A failure to store counts as a failed attempt just like a failed fetch.
func (w *ChapterWorker) Download(ctx context.Context, workID string, chapter domain.ChapterDescriptor) error {
	if err := validation.ValidateID("chapter id", chapter.ID); err != nil {
		return err
	}

	start := time.Now()
	attempt := 0

	op := func() error {
		attempt++
		metrics.ChapterAttempts.Inc()

		text, err := w.source.FetchChapterText(ctx, chapter.ID)
		if err != nil {
			return fmt.Errorf("fetch chapter: %w", err)
		}

		record := domain.ChapterRecord{
			Title:   chapter.Title,
			Content: codec.Encode(text, chapter.ID),
		}
		if err := w.files.WriteJSON(RecordName(workID, chapter.ID), record); err != nil {
			return fmt.Errorf("store chapter: %w", err)
		}
		return nil
	}

	notify := func(err error, next time.Duration) {
		w.logger.Warn("chapter attempt failed",
			"work_id", workID,
			"chapter_id", chapter.ID,
			"attempt", attempt,
			"max_attempts", w.attempts,
			"retry_in", next,
			"error", err,
		)
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(w.delay), uint64(w.attempts-1)),
		ctx,
	)

	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return fmt.Errorf("chapter %s failed after %d attempts: %w", chapter.ID, attempt, err)
	}

	metrics.ChapterDuration.Observe(time.Since(start).Seconds())
	w.logger.Debug("chapter stored",
		"work_id", workID,
		"chapter_id", chapter.ID,
		"attempts", attempt,
	)
	return nil
}
