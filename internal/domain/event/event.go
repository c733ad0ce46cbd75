package event

import (
	"time"

	"github.com/google/uuid"
)

// Event represents a workflow- or task-level lifecycle event
type Event struct {
	ID         string                 `json:"id"`
	Type       Type                   `json:"type"`
	WorkflowID string                 `json:"workflow_id"`
	TaskID     string                 `json:"task_id,omitempty"`
	Payload    map[string]interface{} `json:"payload,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// NewEvent creates a workflow-level event with auto-generated ID and timestamp
func NewEvent(eventType Type, workflowID string, payload map[string]interface{}) *Event {
	return &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		WorkflowID: workflowID,
		Payload:    payload,
		Timestamp:  time.Now(),
	}
}

// NewTaskEvent creates a task-level event keyed by (workflowID, type)
func NewTaskEvent(eventType Type, workflowID, taskID string, payload map[string]interface{}) *Event {
	evt := NewEvent(eventType, workflowID, payload)
	evt.TaskID = taskID
	return evt
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	if val, ok := e.Payload[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

// GetPayloadInt retrieves an int value from the payload
func (e *Event) GetPayloadInt(key string) int {
	if val, ok := e.Payload[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
