package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskSnapshot is the read-only view of a DownloadTask.
type TaskSnapshot struct {
	WorkID             string     `json:"work_id"`
	RunID              uuid.UUID  `json:"run_id"`
	Status             TaskStatus `json:"status"`
	Progress           int        `json:"progress"`
	TotalChapters      int        `json:"total_chapters"`
	DownloadedChapters int        `json:"downloaded_chapters"`
	DisplayTitle       string     `json:"display_title"`
	Error              *string    `json:"error"`
	Path               string     `json:"path"`
	StartedAt          time.Time  `json:"started_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DownloadResult is returned by a download request.
type DownloadResult struct {
	Accepted bool         `json:"accepted"`
	Task     TaskSnapshot `json:"task"`
}

// DownloadRequest represents the request body for starting a download.
type DownloadRequest struct {
	SkipExisting *bool `json:"skip_existing"`
}

// ArchiveListing describes the archive root and the works stored under it.
type ArchiveListing struct {
	Root  string   `json:"root"`
	Works []string `json:"works"`
}

// ResourceManifest maps a resource path relative to the resource root to its hash.
type ResourceManifest map[string]string

// SyncReport summarizes one resource sync run.
type SyncReport struct {
	Fetched int `json:"fetched"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}
