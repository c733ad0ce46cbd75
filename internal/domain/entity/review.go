package entity

import "time"

// Review decisions
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Review records one reviewer's decision on a workflow pending approval
type Review struct {
	ID         string    `json:"id"`
	WorkflowID string    `json:"workflow_id"`
	ReviewerID string    `json:"reviewer_id"`
	Decision   string    `json:"decision"`
	Comment    string    `json:"comment,omitempty"`
	DecidedAt  time.Time `json:"decided_at"`
}
