package board

import (
	"context"
	"fmt"
	"sync"

	"taskboard/internal/models"
)

// fakeRemote records every call and delegates to optional function fields.
type fakeRemote struct {
	mu    sync.Mutex
	calls []string

	listFn           func(models.TaskQuery) ([]models.Task, error)
	assignFn         func(taskID, staffID string) error
	unassignFn       func(taskID, staffID string) error
	updateStatusFn   func(taskID string, status models.TaskStatus, actor string) error
	updatePositionFn func(taskID string, index int) error
	deleteFn         func(taskID string) error
	deleteByStatusFn func(status models.TaskStatus) error

	// ctxFn, when set, sees the context each call was made with.
	ctxFn func(call string, ctx context.Context)
}

func (r *fakeRemote) log(ctx context.Context, format string, args ...any) {
	call := fmt.Sprintf(format, args...)
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.ctxFn != nil {
		r.ctxFn(call, ctx)
	}
}

func (r *fakeRemote) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRemote) ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error) {
	r.log(ctx, "list")
	if r.listFn != nil {
		return r.listFn(q)
	}
	return nil, nil
}

func (r *fakeRemote) Assign(ctx context.Context, taskID, staffID string) error {
	r.log(ctx, "assign %s %s", taskID, staffID)
	if r.assignFn != nil {
		return r.assignFn(taskID, staffID)
	}
	return nil
}

func (r *fakeRemote) Unassign(ctx context.Context, taskID, staffID string) error {
	r.log(ctx, "unassign %s %s", taskID, staffID)
	if r.unassignFn != nil {
		return r.unassignFn(taskID, staffID)
	}
	return nil
}

func (r *fakeRemote) UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, actor string) error {
	r.log(ctx, "status %s %s", taskID, status)
	if r.updateStatusFn != nil {
		return r.updateStatusFn(taskID, status, actor)
	}
	return nil
}

func (r *fakeRemote) UpdatePosition(ctx context.Context, taskID string, index int) error {
	r.log(ctx, "position %s %d", taskID, index)
	if r.updatePositionFn != nil {
		return r.updatePositionFn(taskID, index)
	}
	return nil
}

func (r *fakeRemote) Delete(ctx context.Context, taskID string) error {
	r.log(ctx, "delete %s", taskID)
	if r.deleteFn != nil {
		return r.deleteFn(taskID)
	}
	return nil
}

func (r *fakeRemote) DeleteByStatus(ctx context.Context, status models.TaskStatus) error {
	r.log(ctx, "delete-status %s", status)
	if r.deleteByStatusFn != nil {
		return r.deleteByStatusFn(status)
	}
	return nil
}

// serverState is a tiny authoritative store behind fakeRemote, so refreshes
// observe what the move committed.
type serverState struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

func newServerState(tasks ...models.Task) *serverState {
	s := &serverState{tasks: make(map[string]models.Task)}
	for _, t := range tasks {
		s.tasks[t.ID] = t.Clone()
	}
	return s
}

func (s *serverState) remote() *fakeRemote {
	return &fakeRemote{
		listFn: func(models.TaskQuery) ([]models.Task, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			out := make([]models.Task, 0, len(s.tasks))
			for _, t := range s.tasks {
				out = append(out, t.Clone())
			}
			return out, nil
		},
		assignFn: func(id, staff string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			t := s.tasks[id]
			if t.AssignedStaffID != nil {
				return ErrConflict
			}
			t.AssignedStaffID = models.StringPtr(staff)
			s.tasks[id] = t
			return nil
		},
		unassignFn: func(id, staff string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			t := s.tasks[id]
			if !t.AssignedTo(staff) {
				return ErrConflict
			}
			t.AssignedStaffID = nil
			s.tasks[id] = t
			return nil
		},
		updateStatusFn: func(id string, st models.TaskStatus, _ string) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			t := s.tasks[id]
			t.Status = st
			s.tasks[id] = t
			return nil
		},
		updatePositionFn: func(id string, index int) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			t := s.tasks[id]
			t.Position = int64(index)
			s.tasks[id] = t
			return nil
		},
	}
}

func task(id string, status models.TaskStatus, pos int64, assignee string) models.Task {
	t := models.Task{ID: id, Kind: models.KindMaintenance, Title: "task " + id, Status: status, Position: pos}
	if assignee != "" {
		t.AssignedStaffID = models.StringPtr(assignee)
	}
	return t
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

type notes struct {
	mu    sync.Mutex
	items []Notification
}

func (n *notes) Notify(x Notification) {
	n.mu.Lock()
	n.items = append(n.items, x)
	n.mu.Unlock()
}

func (n *notes) last() Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.items) == 0 {
		return Notification{}
	}
	return n.items[len(n.items)-1]
}

type memJournal struct {
	mu   sync.Mutex
	recs []models.MoveRecord
}

func (j *memJournal) RecordMove(_ context.Context, rec models.MoveRecord) error {
	j.mu.Lock()
	j.recs = append(j.recs, rec)
	j.mu.Unlock()
	return nil
}
