package board

import (
	"sort"
	"sync"

	"taskboard/internal/models"
)

// ColumnStore holds the four ordered task columns of one board. It is the
// only client-side source of truth between remote syncs.
type ColumnStore struct {
	mu      sync.RWMutex
	columns map[models.TaskStatus][]models.Task
}

// NewColumnStore returns an empty store with all four columns present.
func NewColumnStore() *ColumnStore {
	s := &ColumnStore{columns: make(map[models.TaskStatus][]models.Task, len(models.BoardStatuses))}
	for _, st := range models.BoardStatuses {
		s.columns[st] = nil
	}
	return s
}

// Column returns a copy of the column as the viewer may see it.
func (s *ColumnStore) Column(status models.TaskStatus, viewer models.Staff) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Task, 0, len(s.columns[status]))
	for _, t := range s.columns[status] {
		if Visible(viewer, t) {
			out = append(out, t.Clone())
		}
	}
	return out
}

// SetColumn replaces one column. Other columns are left untouched.
func (s *ColumnStore) SetColumn(status models.TaskStatus, tasks []models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[status] = cloneTasks(tasks)
}

// Load re-partitions a freshly fetched task list into the four columns,
// ordered by position then id.
func (s *ColumnStore) Load(tasks []models.Task) {
	next := make(map[models.TaskStatus][]models.Task, len(models.BoardStatuses))
	for _, st := range models.BoardStatuses {
		next[st] = nil
	}
	for _, t := range tasks {
		if !t.Status.Valid() {
			continue
		}
		next[t.Status] = append(next[t.Status], t.Clone())
	}
	for _, col := range next {
		sort.SliceStable(col, func(i, j int) bool {
			if col[i].Position != col[j].Position {
				return col[i].Position < col[j].Position
			}
			return col[i].ID < col[j].ID
		})
	}

	s.mu.Lock()
	s.columns = next
	s.mu.Unlock()
}

// Find locates a task by id anywhere on the board.
func (s *ColumnStore) Find(id string) (models.Task, int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, st := range models.BoardStatuses {
		for i, t := range s.columns[st] {
			if t.ID == id {
				return t.Clone(), i, true
			}
		}
	}
	return models.Task{}, -1, false
}

// Snapshot is a deep copy of some columns, used to roll back a move.
type Snapshot map[models.TaskStatus][]models.Task

// Snapshot copies the named columns.
func (s *ColumnStore) Snapshot(statuses ...models.TaskStatus) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(statuses))
	for _, st := range statuses {
		snap[st] = cloneTasks(s.columns[st])
	}
	return snap
}

// Restore puts every column of snap back in place.
func (s *ColumnStore) Restore(snap Snapshot) {
	for st, tasks := range snap {
		s.SetColumn(st, tasks)
	}
}

// raw returns a copy of the column without the visibility filter.
func (s *ColumnStore) raw(status models.TaskStatus) []models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTasks(s.columns[status])
}

// Visible reports whether viewer may see task on the board. Privileged roles
// see everything; others see all open work plus their own assigned tasks.
func Visible(viewer models.Staff, task models.Task) bool {
	if viewer.Role.Privileged() || task.Status == models.StatusOpen {
		return true
	}
	return task.AssignedTo(viewer.ID)
}

func cloneTasks(tasks []models.Task) []models.Task {
	if tasks == nil {
		return nil
	}
	out := make([]models.Task, len(tasks))
	for i, t := range tasks {
		out[i] = t.Clone()
	}
	return out
}
