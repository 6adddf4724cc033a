package domain

// TaskStatus represents the current state of a DownloadTask.
type TaskStatus string

const (
	TaskStatusDownloading TaskStatus = "downloading"
	TaskStatusCompleted   TaskStatus = "completed"
	TaskStatusFailed      TaskStatus = "failed"
)

// Finished reports whether the task has left the downloading state.
func (s TaskStatus) Finished() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}
