package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"taskboard/internal/models"
)

var (
	ErrRemoteNil = errors.New("board remote is nil")
	ErrNoViewer  = errors.New("board viewer is missing")
)

// Options configures a Controller.
type Options struct {
	Kind     models.TaskKind
	Remote   Remote
	Journal  Journal
	Notifier Notifier
	Prompt   EntityPrompt
	Logger   *slog.Logger
	Now      func() time.Time
}

// Location is a column and an index within it, as the viewer sees it.
type Location struct {
	Status models.TaskStatus `json:"status"`
	Index  int               `json:"index"`
}

// DropEvent is what the drag-and-drop surface reports when a card is
// released. Destination is nil when the card was dropped outside a column.
type DropEvent struct {
	TaskID      string    `json:"task_id"`
	Source      Location  `json:"source"`
	Destination *Location `json:"destination"`
}

// DateRange limits column reads to tasks due within [From, To], compared by
// calendar day. The range filters only when both bounds are set; otherwise
// every task matches.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

func (r DateRange) contains(t models.Task) bool {
	if r.From == nil || r.To == nil {
		return true
	}
	if t.DueDate == nil {
		return false
	}
	due := day(*t.DueDate)
	return !due.Before(day(*r.From)) && !due.After(day(*r.To))
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Controller owns one board for one viewer: it turns drag events and
// explicit actions into validated, executed moves and reports every outcome
// as a notification.
type Controller struct {
	kind     models.TaskKind
	viewer   models.Staff
	store    *ColumnStore
	remote   Remote
	exec     *Executor
	notifier Notifier
	logger   *slog.Logger

	alive atomic.Bool

	inflightMu sync.Mutex
	inflight   map[string]struct{}

	lastRefresh atomic.Int64
}

// NewController builds a board for viewer. The board starts empty; call
// Refresh to load it.
func NewController(viewer models.Staff, opts Options) (*Controller, error) {
	if opts.Remote == nil {
		return nil, ErrRemoteNil
	}
	if viewer.ID == "" || !viewer.Role.Known() {
		return nil, ErrNoViewer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Notifier == nil {
		opts.Notifier = discard{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Kind == "" {
		opts.Kind = models.KindMaintenance
	}

	c := &Controller{
		kind:     opts.Kind,
		viewer:   viewer,
		store:    NewColumnStore(),
		remote:   opts.Remote,
		notifier: opts.Notifier,
		logger:   opts.Logger.With(slog.String("board", string(opts.Kind)), slog.String("viewer", viewer.ID)),
		inflight: make(map[string]struct{}),
	}
	c.alive.Store(true)
	c.exec = &Executor{
		kind:    opts.Kind,
		store:   c.store,
		remote:  opts.Remote,
		journal: opts.Journal,
		prompt:  opts.Prompt,
		logger:  c.logger,
		alive:   c.alive.Load,
		refresh: c.Refresh,
		now:     opts.Now,
	}
	return c, nil
}

// Viewer returns the staff member the board belongs to.
func (c *Controller) Viewer() models.Staff { return c.viewer }

// Kind returns the task collection the board shows.
func (c *Controller) Kind() models.TaskKind { return c.kind }

// Close marks the board dead. In-flight moves finish their remote calls but
// no longer touch the columns.
func (c *Controller) Close() {
	c.alive.Store(false)
}

// Closed reports whether Close was called.
func (c *Controller) Closed() bool { return !c.alive.Load() }

// LastRefresh returns when the board was last loaded from the remote store.
func (c *Controller) LastRefresh() time.Time {
	ns := c.lastRefresh.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Column returns the viewer's view of one column, optionally narrowed to
// tasks due within r.
func (c *Controller) Column(status models.TaskStatus, r DateRange) []models.Task {
	col := c.store.Column(status, c.viewer)
	out := col[:0]
	for _, t := range col {
		if r.contains(t) {
			out = append(out, t)
		}
	}
	return out
}

// Query returns the remote listing that matches the viewer's role.
func (c *Controller) Query() models.TaskQuery {
	switch {
	case c.viewer.Role.Privileged(), c.viewer.Role.Field():
		return models.TaskQuery{ParkID: c.viewer.ParkID}
	default:
		return models.TaskQuery{SubmittingStaffID: c.viewer.ID}
	}
}

// Refresh re-fetches every task and re-partitions the columns.
func (c *Controller) Refresh(ctx context.Context) error {
	tasks, err := c.remote.ListTasks(ctx, c.Query())
	if err != nil {
		return fmt.Errorf("refresh board: %w", err)
	}

	c.exec.local.Lock()
	defer c.exec.local.Unlock()
	if !c.alive.Load() {
		return ErrBoardClosed
	}
	c.store.Load(tasks)
	c.lastRefresh.Store(time.Now().UnixNano())
	return nil
}

// HandleDragEnd processes one released card.
func (c *Controller) HandleDragEnd(ctx context.Context, ev DropEvent) error {
	if ev.Destination == nil {
		return nil
	}
	dst := *ev.Destination

	task, err := c.lookup(ev.TaskID, ev.Source.Status)
	if err != nil {
		return c.fail(ev.TaskID, err)
	}

	intent, err := Validate(task, ev.Source.Status, dst.Status, c.viewer)
	if err != nil {
		c.exec.record(ctx, MoveIntent{TaskID: task.ID, From: ev.Source.Status, To: dst.Status, Actor: c.viewer},
			ev.Source.Index, dst.Index, models.OutcomeRejected, err)
		return c.fail(task.ID, err)
	}
	return c.run(ctx, intent, task, ev.Source.Index, dst.Index)
}

// ChangeStatus moves a task to another column through the same rules as a
// drag, landing it at the end of the destination column.
func (c *Controller) ChangeStatus(ctx context.Context, taskID string, to models.TaskStatus) error {
	task, idx, ok := c.store.Find(taskID)
	if !ok || !Visible(c.viewer, task) {
		return c.fail(taskID, &MoveError{Kind: ErrNotFound, TaskID: taskID})
	}
	intent, err := ValidateStatusChange(task, to, c.viewer)
	if err != nil {
		return c.fail(taskID, err)
	}
	end := len(c.store.Column(to, c.viewer))
	return c.run(ctx, intent, task, idx, end)
}

func (c *Controller) run(ctx context.Context, intent MoveIntent, task models.Task, srcIndex, dstIndex int) error {
	if !c.acquire(task.ID) {
		return c.fail(task.ID, &MoveError{Kind: ErrTaskBusy, TaskID: task.ID})
	}
	defer c.release(task.ID)

	out, err := c.exec.Execute(ctx, intent, task, srcIndex, dstIndex)
	if err != nil {
		return c.fail(task.ID, err)
	}

	msg := "Task position updated"
	if !intent.ReorderOnly() {
		msg = "Task status updated successfully"
	}
	c.notifier.Notify(Notification{Level: LevelSuccess, Message: msg, TaskID: task.ID})
	if out.RefreshErr != nil {
		c.notifier.Notify(Notification{Level: LevelWarning, Message: "Saved, but the board could not be refreshed.", TaskID: task.ID, Retry: true})
	}
	c.logger.Info("task moved",
		slog.String("task_id", task.ID),
		slog.String("from", string(intent.From)),
		slog.String("to", string(intent.To)),
		slog.Int("index", out.Index))
	return nil
}

// Assign gives an open, unassigned task to staffID. Only privileged roles
// may assign on behalf of others.
func (c *Controller) Assign(ctx context.Context, taskID, staffID string) error {
	if !c.viewer.Role.Privileged() {
		return c.fail(taskID, &MoveError{Kind: ErrForbidden, TaskID: taskID, Reason: "only managers can assign staff"})
	}
	task, _, ok := c.store.Find(taskID)
	if !ok {
		return c.fail(taskID, &MoveError{Kind: ErrNotFound, TaskID: taskID})
	}
	if task.Status != models.StatusOpen {
		return c.fail(taskID, invalidf(taskID, "only open tasks can be assigned"))
	}
	if task.AssignedStaffID != nil {
		return c.fail(taskID, &MoveError{Kind: ErrConflict, TaskID: taskID, Reason: "task is already assigned"})
	}
	return c.assignment(ctx, task, "Task assigned successfully", func(ctx context.Context) error {
		return c.remote.Assign(ctx, taskID, staffID)
	}, models.StringPtr(staffID))
}

// Unassign returns an open task to the unassigned pool.
func (c *Controller) Unassign(ctx context.Context, taskID string) error {
	task, _, ok := c.store.Find(taskID)
	if !ok || !Visible(c.viewer, task) {
		return c.fail(taskID, &MoveError{Kind: ErrNotFound, TaskID: taskID})
	}
	if !c.viewer.Role.Privileged() && !task.AssignedTo(c.viewer.ID) {
		return c.fail(taskID, &MoveError{Kind: ErrForbidden, TaskID: taskID, Reason: "you can only unassign your own tasks"})
	}
	if task.Status != models.StatusOpen {
		return c.fail(taskID, invalidf(taskID, "only open tasks can be unassigned; move the task back to %s instead", models.StatusOpen))
	}
	if task.AssignedStaffID == nil {
		return c.fail(taskID, invalidf(taskID, "task is not assigned"))
	}
	return c.assignment(ctx, task, "Staff unassigned successfully", func(ctx context.Context) error {
		return c.remote.Unassign(ctx, taskID, c.viewer.ID)
	}, nil)
}

// assignment applies an assignee change in place, commits it with call and
// rolls back on failure.
func (c *Controller) assignment(ctx context.Context, task models.Task, okMsg string, call func(context.Context) error, assignee *string) error {
	if !c.acquire(task.ID) {
		return c.fail(task.ID, &MoveError{Kind: ErrTaskBusy, TaskID: task.ID})
	}
	defer c.release(task.ID)

	c.exec.local.Lock()
	snap := c.store.Snapshot(task.Status)
	col := c.store.raw(task.Status)
	if i := indexOf(col, task.ID); i >= 0 && c.alive.Load() {
		col[i].AssignedStaffID = assignee
		c.store.SetColumn(task.Status, col)
	}
	c.exec.local.Unlock()

	if err := call(ctx); err != nil {
		c.exec.rollback(snap)
		kind := kindOf(err)
		if errors.Is(kind, ErrConflict) {
			_ = c.Refresh(ctx)
		}
		return c.fail(task.ID, &MoveError{Kind: kind, TaskID: task.ID, Reason: err.Error()})
	}
	c.notifier.Notify(Notification{Level: LevelSuccess, Message: okMsg, TaskID: task.ID})
	c.refreshQuietly(ctx)
	return nil
}

// Delete removes a task. Privileged roles may delete any task, others only
// tasks they submitted.
func (c *Controller) Delete(ctx context.Context, taskID string) error {
	task, _, ok := c.store.Find(taskID)
	if !ok {
		return c.fail(taskID, &MoveError{Kind: ErrNotFound, TaskID: taskID})
	}
	if !c.viewer.Role.Privileged() && task.SubmittingStaffID != c.viewer.ID {
		return c.fail(taskID, &MoveError{Kind: ErrForbidden, TaskID: taskID, Reason: "you can only delete tasks you submitted"})
	}
	if !c.acquire(taskID) {
		return c.fail(taskID, &MoveError{Kind: ErrTaskBusy, TaskID: taskID})
	}
	defer c.release(taskID)

	if err := c.remote.Delete(ctx, taskID); err != nil {
		return c.fail(taskID, &MoveError{Kind: kindOf(err), TaskID: taskID, Reason: err.Error()})
	}

	c.exec.local.Lock()
	if c.alive.Load() {
		col := c.store.raw(task.Status)
		if i := indexOf(col, taskID); i >= 0 {
			col = append(col[:i], col[i+1:]...)
			c.store.SetColumn(task.Status, col)
		}
	}
	c.exec.local.Unlock()

	c.notifier.Notify(Notification{Level: LevelSuccess, Message: fmt.Sprintf("Deleted task: %s.", task.Title), TaskID: taskID})
	return nil
}

// ClearColumn deletes every task in a terminal column.
func (c *Controller) ClearColumn(ctx context.Context, status models.TaskStatus) error {
	if !c.viewer.Role.Privileged() {
		return c.fail("", &MoveError{Kind: ErrForbidden, Reason: "only managers can clear columns"})
	}
	if !status.Terminal() {
		return c.fail("", &MoveError{Kind: ErrInvalidTransition, Reason: fmt.Sprintf("%s column cannot be cleared", status)})
	}
	if err := c.remote.DeleteByStatus(ctx, status); err != nil {
		return c.fail("", &MoveError{Kind: kindOf(err), Reason: err.Error()})
	}

	c.exec.local.Lock()
	if c.alive.Load() {
		c.store.SetColumn(status, nil)
	}
	c.exec.local.Unlock()

	c.notifier.Notify(Notification{Level: LevelSuccess, Message: "Cleared Tasks."})
	c.refreshQuietly(ctx)
	return nil
}

func (c *Controller) refreshQuietly(ctx context.Context) {
	if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrBoardClosed) {
		c.logger.Warn("board refresh failed", slog.String("error", err.Error()))
		c.notifier.Notify(Notification{Level: LevelWarning, Message: "The board could not be refreshed.", Retry: true})
	}
}

func (c *Controller) lookup(taskID string, status models.TaskStatus) (models.Task, error) {
	for _, t := range c.store.Column(status, c.viewer) {
		if t.ID == taskID {
			return t, nil
		}
	}
	return models.Task{}, &MoveError{Kind: ErrNotFound, TaskID: taskID, Reason: fmt.Sprintf("task %s is not in the %s column", taskID, status)}
}

func (c *Controller) fail(taskID string, err error) error {
	c.notifier.Notify(notificationFor(taskID, err))
	c.logger.Info("board action failed", slog.String("task_id", taskID), slog.String("error", err.Error()))
	return err
}

func (c *Controller) acquire(taskID string) bool {
	c.inflightMu.Lock()
	defer c.inflightMu.Unlock()
	if _, busy := c.inflight[taskID]; busy {
		return false
	}
	c.inflight[taskID] = struct{}{}
	return true
}

func (c *Controller) release(taskID string) {
	c.inflightMu.Lock()
	delete(c.inflight, taskID)
	c.inflightMu.Unlock()
}
