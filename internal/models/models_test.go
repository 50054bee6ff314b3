package models

import (
	"testing"
	"time"
)

func TestTaskStatus_Terminal(t *testing.T) {
	tests := []struct {
		status TaskStatus
		want   bool
	}{
		{StatusOpen, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Fatalf("%s.Terminal()=%v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestParseStatus_Unknown(t *testing.T) {
	if _, err := ParseStatus("DONE"); err == nil {
		t.Fatalf("ParseStatus(DONE) err=nil, want non-nil")
	}
	s, err := ParseStatus("IN_PROGRESS")
	if err != nil || s != StatusInProgress {
		t.Fatalf("ParseStatus(IN_PROGRESS)=%q,%v", s, err)
	}
}

func TestTask_CloneDoesNotShareAssignee(t *testing.T) {
	orig := Task{ID: "t1", AssignedStaffID: StringPtr("s1")}
	c := orig.Clone()
	*c.AssignedStaffID = "s2"
	if orig.Assignee() != "s1" {
		t.Fatalf("orig assignee=%q after clone mutation, want s1", orig.Assignee())
	}
}

func TestTask_OverdueAndDueSoon(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	soon := now.Add(24 * time.Hour)

	overdue := Task{Status: StatusOpen, DueDate: &past}
	if !overdue.Overdue(now) {
		t.Fatalf("Overdue()=false, want true")
	}
	if overdue.DueSoon(now, 72*time.Hour) {
		t.Fatalf("DueSoon()=true for overdue task, want false")
	}

	done := Task{Status: StatusCompleted, DueDate: &past}
	if done.Overdue(now) {
		t.Fatalf("completed task reported overdue")
	}

	upcoming := Task{Status: StatusInProgress, DueDate: &soon}
	if !upcoming.DueSoon(now, 72*time.Hour) {
		t.Fatalf("DueSoon()=false, want true")
	}
}

func TestRole_Privileged(t *testing.T) {
	if !RoleManager.Privileged() || !RoleSuperadmin.Privileged() {
		t.Fatalf("manager and superadmin must be privileged")
	}
	if RoleArborist.Privileged() {
		t.Fatalf("arborist must not be privileged")
	}
	if _, err := ParseRole("JANITOR"); err == nil {
		t.Fatalf("ParseRole(JANITOR) err=nil, want non-nil")
	}
}
