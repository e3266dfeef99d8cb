package models

// Lifecycle event names published on the process event bus. Colon notation;
// a trailing ":*" in a subscription matches the whole family.
const (
	EventNodeStart         = "node:start"
	EventNodeComplete      = "node:complete"
	EventExecutionPaused   = "execution:paused"
	EventExecutionComplete = "execution:complete"
	EventExecutionFailed   = "execution:failed"

	EventAIRequest  = "ai:request"
	EventAIResponse = "ai:response"
	EventAIError    = "ai:error"

	EventHumanApprovalRequested = "human:approval_requested"
	EventHumanApproved          = "human:approved"
	EventHumanRejected          = "human:rejected"

	EventTimerExpired = "timer:expired"

	EventWorkflowCompleted = "workflow:completed"
	EventWorkflowFailed    = "workflow:failed"

	// Family prefixes used by the adapter-backed handlers.
	EventFamilyEmail        = "email"
	EventFamilyForm         = "form"
	EventFamilyNotification = "notification"
)
