package analyzer

import "fmt"

// ErrorKind enumerates the AnalysisFailed sub-kinds from §7.
type ErrorKind string

const (
	KindPatternFailure ErrorKind = "pattern_failure"
	KindLinterFailure  ErrorKind = "linter_failure"
	KindAIFailure      ErrorKind = "ai_failure"
	KindForcedFailure  ErrorKind = "forced_failure"
)

// AnalysisError is raised by Analyze when the analysis itself cannot
// produce a Report (as opposed to a detector degrading gracefully).
type AnalysisError struct {
	Kind  ErrorKind
	Cause error
}

func (e *AnalysisError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("analyzer: %s: %v", e.Kind, e.Cause)
	}

	return fmt.Sprintf("analyzer: %s", e.Kind)
}

func (e *AnalysisError) Unwrap() error {
	return e.Cause
}

// ForcedFailure builds the escape-hatch error used by the allow_force_fail
// testing knob (§6): submitting force_fail.js with that flag set always
// raises this, deterministically, so DLQ/retry behavior can be exercised
// without crafting a genuinely malformed detector input.
func ForcedFailure() error {
	return &AnalysisError{Kind: KindForcedFailure, Cause: fmt.Errorf("forced failure requested for force_fail.js")}
}
