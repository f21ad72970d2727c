package domain

// Workflow progress states
const (
	WorkflowProcessing = "PROCESSING"
	WorkflowCompleted  = "COMPLETED"
)

// Workflow step names recorded at the start of a matching run
const (
	StepJDParsed         = "jd_parsed"
	StepProfilesCompared = "profiles_compared"
)

// Notification delivery states
const (
	NotificationSent   = "sent"
	NotificationFailed = "failed"
)
