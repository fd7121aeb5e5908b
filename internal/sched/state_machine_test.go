package sched

import "testing"

func TestTransition_AllowedEdges(t *testing.T) {
	cases := []struct {
		from, to TaskState
		ok       bool
	}{
		{TaskPending, TaskBlocked, true},
		{TaskPending, TaskReady, true},
		{TaskBlocked, TaskReady, true},
		{TaskReady, TaskRunning, true},
		{TaskRunning, TaskCompleted, true},
		{TaskRunning, TaskFailed, true},
		{TaskPending, TaskRunning, false},
		{TaskBlocked, TaskRunning, false},
		{TaskReady, TaskCompleted, false},
		{TaskCompleted, TaskRunning, false},
		{TaskFailed, TaskReady, false},
		{TaskCompleted, TaskFailed, false},
	}
	for _, c := range cases {
		if got := isAllowedTransition(c.from, c.to); got != c.ok {
			t.Errorf("isAllowedTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.ok)
		}
	}
}

func TestTransition_RefusesWrongPriorState(t *testing.T) {
	task := NewTask(7, PriorityNormal, nil)
	if err := task.transition(TaskBlocked, TaskReady); err == nil {
		t.Fatal("transition from wrong prior state succeeded")
	}
	if got := task.State(); got != TaskPending {
		t.Fatalf("state after refused transition = %s, want PENDING", got)
	}
}

func TestTransition_HappyPath(t *testing.T) {
	task := NewTask(7, PriorityNormal, nil)
	steps := []struct{ from, to TaskState }{
		{TaskPending, TaskBlocked},
		{TaskBlocked, TaskReady},
		{TaskReady, TaskRunning},
		{TaskRunning, TaskCompleted},
	}
	for _, s := range steps {
		if err := task.transition(s.from, s.to); err != nil {
			t.Fatalf("transition %s -> %s: %v", s.from, s.to, err)
		}
	}
	if !IsTerminal(task.State()) {
		t.Fatalf("state %s not terminal after full lifecycle", task.State())
	}
}

func TestTaskState_String(t *testing.T) {
	if got := TaskBlocked.String(); got != "BLOCKED" {
		t.Fatalf("TaskBlocked.String() = %q", got)
	}
	if got := TaskState(99).String(); got != "UNKNOWN" {
		t.Fatalf("TaskState(99).String() = %q", got)
	}
}
