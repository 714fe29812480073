package workflow

import "errors"

// Every workflow failure maps to exactly one of these kinds, and each kind
// to one specific user-visible message. All are terminal for the request;
// nothing here retries.
var (
	// ErrBusy rejects a second request while one is in flight.
	ErrBusy = errors.New("workflow: another request is already running")
	// ErrInputTooLong rejects oversized user text before any agent call.
	ErrInputTooLong = errors.New("workflow: input too long")
	// ErrClassificationRejected marks a script classified above what the
	// flow position allows: non-read where only read may run.
	ErrClassificationRejected = errors.New("workflow: script classification rejected")
	// ErrUnsafeScript marks an executor script classified unsafe; unlike
	// ErrClassificationRejected it is about the operation, not the location.
	ErrUnsafeScript = errors.New("workflow: unsafe script rejected")
	// ErrExecutionFailed marks a non-zero exit or runtime error from the shell.
	ErrExecutionFailed = errors.New("workflow: script execution failed")
	// ErrExecutionTimedOut marks a forcibly terminated child.
	ErrExecutionTimedOut = errors.New("workflow: script execution timed out")
	// ErrOutputTooLarge marks a guard violation.
	ErrOutputTooLarge = errors.New("workflow: output too large")
	// ErrAgentProtocol marks a malformed model response.
	ErrAgentProtocol = errors.New("workflow: agent protocol error")
	// ErrAgentCall marks a failed model request (network, auth, API).
	ErrAgentCall = errors.New("workflow: agent call failed")
	// ErrCancelled marks a user-initiated cancellation.
	ErrCancelled = errors.New("workflow: cancelled")
)
