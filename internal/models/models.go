package models

import (
	"fmt"
	"time"
)

// TaskStatus is the board column a task belongs to.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "OPEN"
	StatusInProgress TaskStatus = "IN_PROGRESS"
	StatusCompleted  TaskStatus = "COMPLETED"
	StatusCancelled  TaskStatus = "CANCELLED"
)

// BoardStatuses lists the board columns in display order.
var BoardStatuses = []TaskStatus{StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the four board statuses.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no transition may leave s.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// ParseStatus converts a raw column identifier into a TaskStatus.
func ParseStatus(raw string) (TaskStatus, error) {
	s := TaskStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown task status %q", raw)
	}
	return s, nil
}

// Urgency only drives display grouping and coloring.
type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyLow       Urgency = "LOW"
)

// TaskKind selects the remote task collection a board works on.
type TaskKind string

const (
	KindMaintenance TaskKind = "maintenance"
	KindPlant       TaskKind = "plant"
)

// ParseKind converts a raw kind into a TaskKind.
func ParseKind(raw string) (TaskKind, error) {
	switch TaskKind(raw) {
	case KindMaintenance, KindPlant:
		return TaskKind(raw), nil
	default:
		return "", fmt.Errorf("unknown task kind %q", raw)
	}
}

// EntityType names what a task is about.
type EntityType string

const (
	EntityParkAsset  EntityType = "PARK_ASSET"
	EntitySensor     EntityType = "SENSOR"
	EntityHub        EntityType = "HUB"
	EntityFacility   EntityType = "FACILITY"
	EntityOccurrence EntityType = "OCCURRENCE"
)

// FaultyEntityRef points at the physical entity a task concerns. Exactly one
// kind of entity is referenced; the zero value means none.
type FaultyEntityRef struct {
	Type EntityType `json:"type"`
	ID   string     `json:"id"`
}

// IsZero reports whether the reference is empty.
func (r FaultyEntityRef) IsZero() bool {
	return r.Type == "" || r.ID == ""
}

// Task represents a single card on the task board.
type Task struct {
	ID                string          `json:"id"`
	Kind              TaskKind        `json:"kind"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Status            TaskStatus      `json:"status"`
	Urgency           Urgency         `json:"urgency"`
	Position          int64           `json:"position"`
	AssignedStaffID   *string         `json:"assigned_staff_id,omitempty"`
	SubmittingStaffID string          `json:"submitting_staff_id"`
	ParkID            int64           `json:"park_id,omitempty"`
	FaultyEntity      FaultyEntityRef `json:"faulty_entity"`
	DueDate           *time.Time      `json:"due_date,omitempty"`
	CompletedDate     *time.Time      `json:"completed_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Assignee returns the assigned staff id or "" when unassigned.
func (t Task) Assignee() string {
	if t.AssignedStaffID == nil {
		return ""
	}
	return *t.AssignedStaffID
}

// AssignedTo reports whether the task is assigned to staffID.
func (t Task) AssignedTo(staffID string) bool {
	return t.AssignedStaffID != nil && *t.AssignedStaffID == staffID
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	c := t
	if t.AssignedStaffID != nil {
		id := *t.AssignedStaffID
		c.AssignedStaffID = &id
	}
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedDate != nil {
		d := *t.CompletedDate
		c.CompletedDate = &d
	}
	return c
}

// Overdue reports whether an unfinished task is past its due date.
func (t Task) Overdue(now time.Time) bool {
	if t.DueDate == nil || t.Status.Terminal() {
		return false
	}
	return t.DueDate.Before(now)
}

// DueSoon reports whether an unfinished task falls due within window.
func (t Task) DueSoon(now time.Time, window time.Duration) bool {
	if t.DueDate == nil || t.Status.Terminal() || t.Overdue(now) {
		return false
	}
	return t.DueDate.Sub(now) <= window
}

// StringPtr is a small helper for optional ids.
func StringPtr(s string) *string {
	return &s
}

// TaskQuery narrows a remote task listing. Zero fields are not applied.
type TaskQuery struct {
	ParkID            int64
	AssignedStaffID   string
	SubmittingStaffID string
}

// MoveOutcome records how a board move ended.
type MoveOutcome string

const (
	OutcomeApplied    MoveOutcome = "applied"
	OutcomeRejected   MoveOutcome = "rejected"
	OutcomeRolledBack MoveOutcome = "rolled_back"
)

// MoveRecord is one entry of the move journal.
type MoveRecord struct {
	ID        string      `json:"id"`
	Kind      TaskKind    `json:"kind"`
	TaskID    string      `json:"task_id"`
	ActorID   string      `json:"actor_id"`
	ActorRole Role        `json:"actor_role"`
	From      TaskStatus  `json:"from"`
	To        TaskStatus  `json:"to"`
	FromIndex int         `json:"from_index"`
	ToIndex   int         `json:"to_index"`
	Outcome   MoveOutcome `json:"outcome"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
