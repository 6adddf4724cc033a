package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TasksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_tasks_created_total",
		Help: "Total number of archive tasks started",
	})

	TasksRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_tasks_rejected_total",
		Help: "Total number of download requests rejected because the work was already downloading",
	})

	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_tasks_completed_total",
		Help: "Total number of archive tasks completed",
	})

	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_tasks_failed_total",
		Help: "Total number of archive tasks failed",
	})

	ChapterAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_chapter_attempts_total",
		Help: "Total number of chapter fetch attempts",
	})

	ChaptersSaved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_chapters_saved_total",
		Help: "Total number of chapters fetched and written",
	})

	ChaptersSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_chapters_skipped_total",
		Help: "Total number of chapters skipped because a record already existed",
	})

	ChaptersFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_chapters_failed_total",
		Help: "Total number of chapters abandoned after exhausting retries",
	})

	ChapterDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "bookvault_chapter_duration_seconds",
		Help:    "Time to fetch and store one chapter, including retries",
		Buckets: prometheus.DefBuckets,
	})

	ResourcesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_resources_fetched_total",
		Help: "Total number of resource files fetched",
	})

	ResourceSyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bookvault_resource_sync_failures_total",
		Help: "Total number of resource syncs aborted before updating the cache",
	})
)
