package execution

import "fmt"

// DefaultMaxOutput is the default captured-output cap in characters (100KB).
const DefaultMaxOutput = 100_000

// OutputTooLargeError reports a guard violation with the measured size, so
// callers can render an actionable message instead of a vague failure.
type OutputTooLargeError struct {
	Size int
	Max  int
}

func (e *OutputTooLargeError) Error() string {
	return fmt.Sprintf("results too large (%dKB). Try a more specific request", e.Size/1000)
}

// Guard enforces the maximum captured-output size. Output is never silently
// truncated: a summarizer fed a truncated transcript would fabricate
// conclusions from data it does not have, so oversized output fails the
// whole request instead.
type Guard struct {
	Max int
}

// NewGuard returns a guard with the given cap, or the default when max <= 0.
func NewGuard(max int) Guard {
	if max <= 0 {
		max = DefaultMaxOutput
	}
	return Guard{Max: max}
}

// Check returns an *OutputTooLargeError when output exceeds the cap.
func (g Guard) Check(output string) error {
	if len(output) > g.Max {
		return &OutputTooLargeError{Size: len(output), Max: g.Max}
	}
	return nil
}
