package board

import "taskboard/internal/models"

// MoveIntent is an approved move together with the status and assignment
// changes it implies.
type MoveIntent struct {
	TaskID string
	From   models.TaskStatus
	To     models.TaskStatus
	Actor  models.Staff

	// Assign and Unassign are mutually exclusive.
	Assign   bool
	Unassign bool

	// AssigneeAfter is the assignee the task carries once the move lands.
	AssigneeAfter *string
}

// ReorderOnly reports whether the move stays within one column.
func (m MoveIntent) ReorderOnly() bool {
	return m.From == m.To
}

// Validate decides whether task may move from one column to another when
// actor performs the drag.
func Validate(task models.Task, from, to models.TaskStatus, actor models.Staff) (MoveIntent, error) {
	if !from.Valid() || !to.Valid() {
		return MoveIntent{}, invalidf(task.ID, "unknown column %q -> %q", from, to)
	}
	if !actor.Role.Known() {
		return MoveIntent{}, invalidf(task.ID, "role %q cannot move tasks", actor.Role)
	}
	if task.Status != from {
		return MoveIntent{}, invalidf(task.ID, "task is %s, not %s; refresh the board", task.Status, from)
	}
	if from.Terminal() {
		return MoveIntent{}, invalidf(task.ID, "%s tasks cannot be moved", from)
	}
	if !actor.Role.Privileged() && from == models.StatusInProgress && !task.AssignedTo(actor.ID) {
		return MoveIntent{}, invalidf(task.ID, "only the assigned staff member can move this task")
	}

	intent := MoveIntent{
		TaskID:        task.ID,
		From:          from,
		To:            to,
		Actor:         actor,
		AssigneeAfter: task.AssignedStaffID,
	}
	if from == to {
		return intent, nil
	}

	switch {
	case from == models.StatusOpen && to == models.StatusCompleted:
		return MoveIntent{}, invalidf(task.ID, "an unassigned task cannot be completed directly; move it to %s first", models.StatusInProgress)
	case from == models.StatusOpen && to == models.StatusInProgress:
		if task.AssignedStaffID != nil && !task.AssignedTo(actor.ID) {
			return MoveIntent{}, invalidf(task.ID, "task is already assigned to another staff member")
		}
		intent.Assign = task.AssignedStaffID == nil
		intent.AssigneeAfter = models.StringPtr(actor.ID)
	case from == models.StatusInProgress && to == models.StatusOpen:
		intent.Unassign = task.AssignedStaffID != nil
		intent.AssigneeAfter = nil
	}
	return intent, nil
}

// ValidateStatusChange applies the drag rules to an explicit status change,
// such as one made from an edit form, so that every path into COMPLETED goes
// through IN_PROGRESS.
func ValidateStatusChange(task models.Task, to models.TaskStatus, actor models.Staff) (MoveIntent, error) {
	return Validate(task, task.Status, to, actor)
}
