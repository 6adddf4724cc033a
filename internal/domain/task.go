package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// DownloadTask tracks the archival of one work for the lifetime of the process.
// It is owned by the archive service and never handed out directly; callers get
// a TaskSnapshot instead.
type DownloadTask struct {
	WorkID             string
	RunID              uuid.UUID
	Status             TaskStatus
	Progress           int
	DownloadedChapters int
	Work               *Work
	Chapters           []ChapterDescriptor
	Error              *string
	Path               string
	SkipExisting       bool
	StartedAt          time.Time
	UpdatedAt          time.Time
}

// NewDownloadTask returns a task in the downloading state.
func NewDownloadTask(workID string, skipExisting bool) *DownloadTask {
	now := time.Now()
	return &DownloadTask{
		WorkID:       workID,
		RunID:        uuid.New(),
		Status:       TaskStatusDownloading,
		SkipExisting: skipExisting,
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// Snapshot projects the task into its externally visible form.
func (t *DownloadTask) Snapshot() TaskSnapshot {
	s := TaskSnapshot{
		WorkID:             t.WorkID,
		RunID:              t.RunID,
		Status:             t.Status,
		Progress:           t.Progress,
		TotalChapters:      len(t.Chapters),
		DownloadedChapters: t.DownloadedChapters,
		DisplayTitle:       fmt.Sprintf("Work %s", t.WorkID),
		Path:               t.Path,
		StartedAt:          t.StartedAt,
		UpdatedAt:          t.UpdatedAt,
	}
	if t.Work != nil && t.Work.Title != "" {
		s.DisplayTitle = t.Work.Title
	}
	if t.Error != nil {
		msg := *t.Error
		s.Error = &msg
	}
	return s
}

// Fail moves the task to the failed state with the given error message.
func (t *DownloadTask) Fail(err error) {
	msg := err.Error()
	t.Status = TaskStatusFailed
	t.Error = &msg
	t.UpdatedAt = time.Now()
}

// Complete moves the task to the completed state.
func (t *DownloadTask) Complete() {
	t.Status = TaskStatusCompleted
	t.Progress = 100
	t.UpdatedAt = time.Now()
}

// Advance records chapter index i as done and recomputes progress.
func (t *DownloadTask) Advance(i int) {
	t.DownloadedChapters = i + 1
	if total := len(t.Chapters); total > 0 {
		t.Progress = int(math.Round(float64(i+1) / float64(total) * 100))
	}
	t.UpdatedAt = time.Now()
}
