package fetch

// Status is the lifecycle state of a Session.
type Status string

const (
	// StatusIdle means the session has been created but not started
	StatusIdle Status = "Idle"

	// StatusRunning means pages are being fetched and results absorbed
	StatusRunning Status = "Running"

	// StatusPaused means result absorption is on hold
	StatusPaused Status = "Paused"

	// StatusCancelled means the session was stopped by the caller
	StatusCancelled Status = "Cancelled"

	// StatusCompleted means the result set was exhausted or served from cache
	StatusCompleted Status = "Completed"

	// StatusFailed means a page-level error ended the session
	StatusFailed Status = "Failed"
)

func (status Status) String() string {
	return string(status)
}

// IsActive returns true while the fetch loop may still change the session
func (status Status) IsActive() bool {
	return status == StatusRunning || status == StatusPaused
}

// IsTerminal returns true for Cancelled, Completed and Failed
func (status Status) IsTerminal() bool {
	return status == StatusCancelled || status == StatusCompleted || status == StatusFailed
}
