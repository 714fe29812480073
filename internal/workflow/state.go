package workflow

// State is the engine's position in a workflow. Exactly one request moves
// through these states at a time; Error absorbs any failure.
type State string

const (
	StateIdle              State = "idle"
	StateAgentCall         State = "agent_call"
	StateClassifying       State = "classifying"
	StateExecuting         State = "executing"
	StateGuarding          State = "guarding"
	StateApprovalPending   State = "approval_pending"
	StateApprovedExecuting State = "approved_executing"
	StateSummarizing       State = "summarizing"
	StateDone              State = "done"
	StateError             State = "error"
)
