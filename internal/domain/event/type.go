package event

// Type identifies the type of lifecycle event
type Type string

// Workflow-level events
const (
	TypeWorkflowCreated   Type = "workflow.created"
	TypeWorkflowUpdated   Type = "workflow.updated"
	TypeWorkflowStarted   Type = "workflow.started"
	TypeWorkflowCompleted Type = "workflow.completed"
	TypeWorkflowCancelled Type = "workflow.cancelled"
	TypeWorkflowDeleted   Type = "workflow.deleted"
)

// Task-level events
const (
	TypeTaskCreated   Type = "task.created"
	TypeTaskUpdated   Type = "task.updated"
	TypeTaskCompleted Type = "task.completed"
	TypeTaskAssigned  Type = "task.assigned"
	TypeTaskDeleted   Type = "task.deleted"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeWorkflowCreated,
		TypeWorkflowUpdated,
		TypeWorkflowStarted,
		TypeWorkflowCompleted,
		TypeWorkflowCancelled,
		TypeWorkflowDeleted,
		TypeTaskCreated,
		TypeTaskUpdated,
		TypeTaskCompleted,
		TypeTaskAssigned,
		TypeTaskDeleted:
		return true
	default:
		return false
	}
}

// IsTaskEvent returns true for task-level event types
func (t Type) IsTaskEvent() bool {
	switch t {
	case TypeTaskCreated, TypeTaskUpdated, TypeTaskCompleted, TypeTaskAssigned, TypeTaskDeleted:
		return true
	default:
		return false
	}
}
