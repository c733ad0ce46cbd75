package entity

// TaskBlueprint describes one task to seed when a template is instantiated
type TaskBlueprint struct {
	Name            string `json:"name" yaml:"name"`
	Description     string `json:"description,omitempty" yaml:"description"`
	DefaultAssignee string `json:"default_assignee,omitempty" yaml:"default_assignee"`
}

// Template is an immutable blueprint for instantiating a workflow with a
// predefined ordered task set. Templates are configuration data loaded at
// startup, never created through the mutation API.
type Template struct {
	ID         string          `json:"id" yaml:"id"`
	Name       string          `json:"name" yaml:"name"`
	Category   string          `json:"category" yaml:"category"`
	Type       WorkflowType    `json:"type" yaml:"type"`
	Blueprints []TaskBlueprint `json:"blueprints" yaml:"blueprints"`
}
