package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"taskboard/internal/models"
)

// Remote is the authoritative task store the board commits moves to.
type Remote interface {
	ListTasks(ctx context.Context, q models.TaskQuery) ([]models.Task, error)
	Assign(ctx context.Context, taskID, staffID string) error
	Unassign(ctx context.Context, taskID, staffID string) error
	UpdateStatus(ctx context.Context, taskID string, status models.TaskStatus, actingStaffID string) error
	UpdatePosition(ctx context.Context, taskID string, index int) error
	Delete(ctx context.Context, taskID string) error
	DeleteByStatus(ctx context.Context, status models.TaskStatus) error
}

// Journal records move outcomes. A nil Journal disables recording.
type Journal interface {
	RecordMove(ctx context.Context, rec models.MoveRecord) error
}

// EntityPrompt is called after a task lands in a non-terminal column so the
// caller can offer to update the entity the task concerns.
type EntityPrompt func(ctx context.Context, task models.Task)

// Outcome describes a move the executor committed.
type Outcome struct {
	Task       models.Task
	Index      int
	RefreshErr error
}

// Executor applies validated moves optimistically and commits them remotely,
// rolling the local columns back when a remote step fails.
type Executor struct {
	kind    models.TaskKind
	store   *ColumnStore
	remote  Remote
	journal Journal
	prompt  EntityPrompt
	logger  *slog.Logger
	alive   func() bool
	refresh func(ctx context.Context) error
	now     func() time.Time

	// local serializes read-modify-write sequences over several columns.
	local sync.Mutex
}

// Execute applies intent to task, landing it at visible index dstIndex of
// the destination column as seen by the acting staff member.
func (e *Executor) Execute(ctx context.Context, intent MoveIntent, task models.Task, srcIndex, dstIndex int) (Outcome, error) {
	e.local.Lock()
	if !e.alive() {
		e.local.Unlock()
		return Outcome{}, ErrBoardClosed
	}
	snap := e.store.Snapshot(intent.From, intent.To)
	moved, rawIndex, err := e.apply(intent, task, dstIndex)
	e.local.Unlock()
	if err != nil {
		e.record(ctx, intent, srcIndex, dstIndex, models.OutcomeRejected, err)
		return Outcome{}, err
	}

	if landed, err := e.commit(ctx, intent, task, rawIndex); err != nil {
		kind := kindOf(err)
		e.rollback(snap)
		e.record(ctx, intent, srcIndex, dstIndex, models.OutcomeRolledBack, err)
		e.logger.Warn("move rolled back",
			slog.String("task_id", task.ID),
			slog.String("from", string(intent.From)),
			slog.String("to", string(intent.To)),
			slog.Bool("remote_changed", landed),
			slog.String("error", err.Error()))

		// The restored snapshot no longer matches the server once part of the
		// move landed remotely.
		if landed || errors.Is(kind, ErrConflict) || errors.Is(kind, ErrNotFound) {
			rctx, cancel := detach(ctx)
			if rerr := e.refresh(rctx); rerr != nil && !errors.Is(rerr, ErrBoardClosed) {
				e.logger.Error("refresh after failed move failed", slog.String("task_id", task.ID), slog.String("error", rerr.Error()))
			}
			cancel()
		}
		return Outcome{}, &MoveError{Kind: kind, TaskID: task.ID, Reason: err.Error()}
	}

	e.record(ctx, intent, srcIndex, dstIndex, models.OutcomeApplied, nil)
	out := Outcome{Task: moved, Index: rawIndex}
	if err := e.refresh(ctx); err != nil {
		e.logger.Warn("refresh after move failed", slog.String("task_id", task.ID), slog.String("error", err.Error()))
		out.RefreshErr = err
	}

	if e.prompt != nil && !intent.To.Terminal() && !moved.FaultyEntity.IsZero() {
		e.prompt(ctx, moved)
	}
	return out, nil
}

// apply performs the optimistic local update. Caller holds e.local.
func (e *Executor) apply(intent MoveIntent, task models.Task, dstIndex int) (models.Task, int, error) {
	src := e.store.raw(intent.From)
	at := indexOf(src, task.ID)
	if at < 0 {
		return models.Task{}, 0, &MoveError{Kind: ErrNotFound, TaskID: task.ID, Reason: fmt.Sprintf("task %s is not in the %s column", task.ID, intent.From)}
	}
	moved := src[at]
	src = append(src[:at], src[at+1:]...)

	if intent.ReorderOnly() {
		idx := rawInsertIndex(src, intent.Actor, dstIndex)
		src = insertAt(src, idx, moved)
		renumber(src)
		e.store.SetColumn(intent.From, src)
		return src[idx].Clone(), idx, nil
	}

	moved.Status = intent.To
	moved.AssignedStaffID = intent.AssigneeAfter
	dst := e.store.raw(intent.To)
	idx := rawInsertIndex(dst, intent.Actor, dstIndex)
	dst = insertAt(dst, idx, moved)
	renumber(src)
	renumber(dst)
	e.store.SetColumn(intent.From, src)
	e.store.SetColumn(intent.To, dst)
	return dst[idx].Clone(), idx, nil
}

// commit issues the remote calls of one move in order: assignment change,
// status, then position. landed reports whether the server was left with
// part of the move applied.
func (e *Executor) commit(ctx context.Context, intent MoveIntent, task models.Task, index int) (landed bool, err error) {
	if intent.ReorderOnly() {
		if err := e.remote.UpdatePosition(ctx, task.ID, index); err != nil {
			return false, fmt.Errorf("update position: %w", err)
		}
		return false, nil
	}

	switch {
	case intent.Assign:
		if err := e.remote.Assign(ctx, task.ID, intent.Actor.ID); err != nil {
			return false, fmt.Errorf("assign: %w", err)
		}
	case intent.Unassign:
		if err := e.remote.Unassign(ctx, task.ID, intent.Actor.ID); err != nil {
			return false, fmt.Errorf("unassign: %w", err)
		}
	}

	if err := e.remote.UpdateStatus(ctx, task.ID, intent.To, intent.Actor.ID); err != nil {
		return !e.compensate(ctx, intent, task), fmt.Errorf("update status: %w", err)
	}
	if err := e.remote.UpdatePosition(ctx, task.ID, index); err != nil {
		return true, fmt.Errorf("update position: %w", err)
	}
	return false, nil
}

// compensate undoes a remote assignment change whose status update failed
// and reports whether the server is back to its state before the move.
// It runs detached from ctx so a cancelled request still gets undone.
func (e *Executor) compensate(ctx context.Context, intent MoveIntent, task models.Task) bool {
	cctx, cancel := detach(ctx)
	defer cancel()

	var err error
	switch {
	case intent.Assign:
		err = e.remote.Unassign(cctx, task.ID, intent.Actor.ID)
	case intent.Unassign && task.AssignedStaffID != nil:
		err = e.remote.Assign(cctx, task.ID, *task.AssignedStaffID)
	default:
		return true
	}
	if err != nil {
		e.logger.Error("compensating assignment change failed",
			slog.String("task_id", task.ID),
			slog.String("error", err.Error()))
		return false
	}
	return true
}

// repairTimeout bounds the remote calls that repair a failed move.
const repairTimeout = 10 * time.Second

// detach returns a context that keeps ctx's values but not its cancellation.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), repairTimeout)
}

func (e *Executor) rollback(snap Snapshot) {
	e.local.Lock()
	defer e.local.Unlock()
	if !e.alive() {
		return
	}
	e.store.Restore(snap)
}

func (e *Executor) record(ctx context.Context, intent MoveIntent, srcIndex, dstIndex int, outcome models.MoveOutcome, cause error) {
	if e.journal == nil {
		return
	}
	rec := models.MoveRecord{
		Kind:      e.kind,
		TaskID:    intent.TaskID,
		ActorID:   intent.Actor.ID,
		ActorRole: intent.Actor.Role,
		From:      intent.From,
		To:        intent.To,
		FromIndex: srcIndex,
		ToIndex:   dstIndex,
		Outcome:   outcome,
		CreatedAt: e.now(),
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	if err := e.journal.RecordMove(ctx, rec); err != nil {
		e.logger.Warn("journal write failed", slog.String("task_id", intent.TaskID), slog.String("error", err.Error()))
	}
}

func indexOf(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// rawInsertIndex maps an index in the viewer's filtered column onto the
// unfiltered column. Out of range indices land at the end.
func rawInsertIndex(col []models.Task, viewer models.Staff, visibleIndex int) int {
	if visibleIndex <= 0 {
		for i, t := range col {
			if Visible(viewer, t) {
				return i
			}
		}
		return len(col)
	}
	seen := 0
	for i, t := range col {
		if !Visible(viewer, t) {
			continue
		}
		if seen == visibleIndex {
			return i
		}
		seen++
	}
	return len(col)
}

func insertAt(tasks []models.Task, idx int, t models.Task) []models.Task {
	if idx > len(tasks) {
		idx = len(tasks)
	}
	tasks = append(tasks, models.Task{})
	copy(tasks[idx+1:], tasks[idx:])
	tasks[idx] = t
	return tasks
}

func renumber(tasks []models.Task) {
	for i := range tasks {
		tasks[i].Position = int64(i)
	}
}
