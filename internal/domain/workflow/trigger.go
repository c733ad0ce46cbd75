package workflow

// Trigger represents an event that can cause a status transition
type Trigger string

const (
	TriggerStart    Trigger = "START"
	TriggerHold     Trigger = "HOLD"
	TriggerResume   Trigger = "RESUME"
	TriggerSubmit   Trigger = "SUBMIT_FOR_APPROVAL"
	TriggerApprove  Trigger = "APPROVE"
	TriggerReject   Trigger = "REJECT"
	TriggerComplete Trigger = "COMPLETE"
	TriggerCancel   Trigger = "CANCEL"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
