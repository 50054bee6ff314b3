package board

import (
	"errors"
	"sync"

	"taskboard/internal/models"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelPrompt  Level = "prompt"
)

// Notification is a transient message shown to the board's user.
type Notification struct {
	Level   Level                   `json:"level"`
	Message string                  `json:"message"`
	TaskID  string                  `json:"task_id,omitempty"`
	Retry   bool                    `json:"retry,omitempty"`
	Entity  *models.FaultyEntityRef `json:"entity,omitempty"`
}

// Notifier renders notifications to the user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type discard struct{}

func (discard) Notify(Notification) {}

// Inbox buffers notifications until they are drained. When full the oldest
// entries are dropped.
type Inbox struct {
	mu    sync.Mutex
	limit int
	items []Notification
}

// NewInbox returns an inbox holding at most limit notifications.
func NewInbox(limit int) *Inbox {
	if limit <= 0 {
		limit = 50
	}
	return &Inbox{limit: limit}
}

func (b *Inbox) Notify(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, n)
	if over := len(b.items) - b.limit; over > 0 {
		b.items = append([]Notification(nil), b.items[over:]...)
	}
}

// Drain returns and clears the buffered notifications.
func (b *Inbox) Drain() []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.items
	b.items = nil
	return out
}

// notificationFor renders a failed board action.
func notificationFor(taskID string, err error) Notification {
	n := Notification{Level: LevelError, TaskID: taskID}
	var me *MoveError
	switch {
	case errors.Is(err, ErrTaskBusy):
		n.Level = LevelWarning
		n.Message = "A change to this task is still being saved."
	case errors.Is(err, ErrInvalidTransition):
		n.Message = "Move not allowed"
		if errors.As(err, &me) && me.Reason != "" {
			n.Message = "Move not allowed: " + me.Reason
		}
	case errors.Is(err, ErrConflict):
		n.Message = "The task was changed by someone else. The board has been refreshed."
	case errors.Is(err, ErrNotFound):
		n.Message = "The task no longer exists."
	case errors.Is(err, ErrForbidden):
		n.Message = "You are not allowed to do that."
	case errors.Is(err, ErrBoardClosed):
		n.Level = LevelWarning
		n.Message = "The board was closed."
	default:
		n.Message = "Failed to update task status or position. Please try again."
		n.Retry = true
	}
	return n
}
