package entity

import (
	"fmt"
	"time"
)

// WorkflowType classifies the regulatory process a workflow tracks
type WorkflowType string

const (
	TypeINDSubmission      WorkflowType = "IND_SUBMISSION"
	TypeCSRPreparation     WorkflowType = "CSR_PREPARATION"
	TypeProtocolReview     WorkflowType = "PROTOCOL_REVIEW"
	TypeStudyStartup       WorkflowType = "STUDY_STARTUP"
	TypeRegulatoryResponse WorkflowType = "REGULATORY_RESPONSE"
	TypeDocumentApproval   WorkflowType = "DOCUMENT_APPROVAL"
	TypeCustom             WorkflowType = "CUSTOM"
)

var validTypes = map[WorkflowType]bool{
	TypeINDSubmission:      true,
	TypeCSRPreparation:     true,
	TypeProtocolReview:     true,
	TypeStudyStartup:       true,
	TypeRegulatoryResponse: true,
	TypeDocumentApproval:   true,
	TypeCustom:             true,
}

// Types that must pass through a review gate before completing
var approvalTypes = map[WorkflowType]bool{
	TypeProtocolReview:   true,
	TypeDocumentApproval: true,
}

// IsValid returns true if the type is a recognized workflow type
func (t WorkflowType) IsValid() bool {
	return validTypes[t]
}

// RequiresApproval returns true if workflows of this type complete through
// a review gate instead of completing directly at 100% progress
func (t WorkflowType) RequiresApproval() bool {
	return approvalTypes[t]
}

// String returns the string representation of the workflow type
func (t WorkflowType) String() string {
	return string(t)
}

// Workflow is the aggregate root for a tracked multi-step regulatory process.
// It owns its task set exclusively; deleting the workflow cascades to tasks.
type Workflow struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Type              WorkflowType `json:"type"`
	Description       string       `json:"description,omitempty"`
	Status            Status       `json:"status"`
	Progress          int          `json:"progress"`
	StartDate         time.Time    `json:"start_date"`
	DueDate           *time.Time   `json:"due_date,omitempty"`
	CompletedDate     *time.Time   `json:"completed_date,omitempty"`
	CancelReason      string       `json:"cancel_reason,omitempty"`
	CreatedBy         string       `json:"created_by"`
	OrganizationID    string       `json:"organization_id"`
	ModuleID          string       `json:"module_id"`
	ProjectID         string       `json:"project_id"`
	RequiredReviewers []string     `json:"required_reviewers,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
	Version           int64        `json:"version"`
}

// Validate checks required fields and enum values
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("%w: workflow name is required", ErrValidation)
	}
	if !w.Type.IsValid() {
		return fmt.Errorf("%w: unrecognized workflow type %q", ErrValidation, w.Type)
	}
	if !w.Status.IsValid() {
		return fmt.Errorf("%w: unrecognized workflow status %q", ErrValidation, w.Status)
	}
	if w.Progress < 0 || w.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrValidation, w.Progress)
	}
	return nil
}
