package storage

import (
	"sort"
	"sync"

	"github.com/veranemoloko/bookvault/internal/domain"
)

// TaskStorage keeps download tasks in memory, keyed by work id. Tasks live until
// the process exits and are never written to disk.
type TaskStorage struct {
	mu    sync.RWMutex
	tasks map[string]*domain.DownloadTask
}

func NewTaskStorage() *TaskStorage {
	return &TaskStorage{
		tasks: make(map[string]*domain.DownloadTask),
	}
}

// Begin registers a fresh downloading task for workID unless one is already
// downloading, in which case the existing task's snapshot is returned with
// started set to false.
func (s *TaskStorage) Begin(workID string, skipExisting bool) (domain.TaskSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tasks[workID]; ok && !existing.Status.Finished() {
		return existing.Snapshot(), false
	}

	task := domain.NewDownloadTask(workID, skipExisting)
	s.tasks[workID] = task
	return task.Snapshot(), true
}

// Update applies fn to the task for workID under the write lock.
// It reports false when no task is registered.
func (s *TaskStorage) Update(workID string, fn func(task *domain.DownloadTask)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[workID]
	if !ok {
		return false
	}
	fn(task)
	return true
}

// Get returns a snapshot of the task for workID.
func (s *TaskStorage) Get(workID string) (domain.TaskSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[workID]
	if !ok {
		return domain.TaskSnapshot{}, false
	}
	return task.Snapshot(), true
}

// GetAll returns snapshots of every task, oldest first.
func (s *TaskStorage) GetAll() []domain.TaskSnapshot {
	s.mu.RLock()
	snapshots := make([]domain.TaskSnapshot, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshots = append(snapshots, task.Snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].StartedAt.Equal(snapshots[j].StartedAt) {
			return snapshots[i].WorkID < snapshots[j].WorkID
		}
		return snapshots[i].StartedAt.Before(snapshots[j].StartedAt)
	})
	return snapshots
}
