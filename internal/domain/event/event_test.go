package event

import (
	"testing"
	"time"
)

func TestType_IsValid(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{
			name:      "workflow created",
			eventType: TypeWorkflowCreated,
			want:      true,
		},
		{
			name:      "workflow completed",
			eventType: TypeWorkflowCompleted,
			want:      true,
		},
		{
			name:      "task completed",
			eventType: TypeTaskCompleted,
			want:      true,
		},
		{
			name:      "unknown type",
			eventType: Type("workflow.exploded"),
			want:      false,
		},
		{
			name:      "empty type",
			eventType: Type(""),
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestType_IsTaskEvent(t *testing.T) {
	tests := []struct {
		name      string
		eventType Type
		want      bool
	}{
		{
			name:      "task created is a task event",
			eventType: TypeTaskCreated,
			want:      true,
		},
		{
			name:      "task assigned is a task event",
			eventType: TypeTaskAssigned,
			want:      true,
		},
		{
			name:      "workflow started is not a task event",
			eventType: TypeWorkflowStarted,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.eventType.IsTaskEvent(); got != tt.want {
				t.Errorf("IsTaskEvent() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewEvent(t *testing.T) {
	before := time.Now()
	e := NewEvent(TypeWorkflowCreated, "wf-1", map[string]interface{}{"name": "IND Submission"})

	if e.ID == "" {
		t.Error("expected non-empty event ID")
	}
	if e.Type != TypeWorkflowCreated {
		t.Errorf("Type = %v, want %v", e.Type, TypeWorkflowCreated)
	}
	if e.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %v, want wf-1", e.WorkflowID)
	}
	if e.TaskID != "" {
		t.Errorf("TaskID = %q, want empty", e.TaskID)
	}
	if e.Timestamp.Before(before) {
		t.Error("timestamp should not predate event creation")
	}

	if name := e.GetPayloadString("name"); name != "IND Submission" {
		t.Errorf("GetPayloadString(name) = %q", name)
	}
}

func TestNewTaskEvent(t *testing.T) {
	e := NewTaskEvent(TypeTaskCompleted, "wf-1", "task-9", map[string]interface{}{"order": 3})

	if e.WorkflowID != "wf-1" {
		t.Errorf("WorkflowID = %v, want wf-1", e.WorkflowID)
	}
	if e.TaskID != "task-9" {
		t.Errorf("TaskID = %v, want task-9", e.TaskID)
	}

	if order := e.GetPayloadInt("order"); order != 3 {
		t.Errorf("GetPayloadInt(order) = %d", order)
	}
}

func TestEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(TypeWorkflowUpdated, "wf-1", nil)
	b := NewEvent(TypeWorkflowUpdated, "wf-1", nil)

	if a.ID == b.ID {
		t.Error("two events should not share an ID")
	}
}
