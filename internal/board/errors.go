package board

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("assignment conflict")
	ErrNetworkFailure    = errors.New("network failure")
	ErrNotFound          = errors.New("task not found")
	ErrTaskBusy          = errors.New("task move already in flight")
	ErrBoardClosed       = errors.New("board closed")
	ErrForbidden         = errors.New("action not permitted for role")
)

// MoveError describes why a move or board action did not go through.
type MoveError struct {
	Kind   error
	TaskID string
	Reason string
}

func (e *MoveError) Error() string {
	if e == nil {
		return ""
	}
	if e.Reason == "" {
		return fmt.Sprintf("%s: task %s", e.Kind.Error(), e.TaskID)
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Reason)
}

func (e *MoveError) Unwrap() error { return e.Kind }

func invalidf(taskID, format string, args ...any) error {
	return &MoveError{Kind: ErrInvalidTransition, TaskID: taskID, Reason: fmt.Sprintf(format, args...)}
}

// kindOf returns the sentinel the error classifies as, defaulting to a
// network failure for anything the remote layer did not classify.
func kindOf(err error) error {
	for _, k := range []error{ErrInvalidTransition, ErrConflict, ErrNotFound, ErrForbidden, ErrNetworkFailure} {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrNetworkFailure
}
