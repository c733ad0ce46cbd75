package entity

// Status represents a workflow status in its lifecycle
type Status string

const (
	StatusNotStarted      Status = "NOT_STARTED"
	StatusInProgress      Status = "IN_PROGRESS"
	StatusOnHold          Status = "ON_HOLD"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusCompleted       Status = "COMPLETED"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

var validStatuses = map[Status]bool{
	StatusNotStarted:      true,
	StatusInProgress:      true,
	StatusOnHold:          true,
	StatusPendingApproval: true,
	StatusCompleted:       true,
	StatusRejected:        true,
	StatusCancelled:       true,
}

// Terminal statuses are write-once: no further transitions are permitted
var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusRejected:  true,
	StatusCancelled: true,
}

// IsTerminal returns true if the status permits no further transitions
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// IsValid returns true if the status is a valid workflow status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}
