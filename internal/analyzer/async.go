package analyzer

import (
	"regexp"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// asyncMarker gates stage 3: async/concurrency detectors only run when the
// file shows some sign of asynchronous code (§4.5.3).
var asyncMarker = regexp.MustCompile(`\basync\b|\bawait\b|\.then\s*\(|Promise\.|setTimeout|setInterval`)

func hasAsyncMarkers(content string) bool {
	return asyncMarker.MatchString(content)
}

var promiseWithoutCatch = regexp.MustCompile(`\.then\s*\([^)]*\)\s*;?\s*$`)

// runAsyncDetectors covers §4.5.3 stage 3's async/concurrency rules. Each
// issue carries a category so the Analyzer can route it via §4.5.4 rather
// than this detector deciding the bucket itself. Callback-nesting depth is
// a stage-4 (semantic) rule per SPEC_FULL.md:101, not stage 3 — see
// semantic.go.
func runAsyncDetectors(scanner *Scanner, _ string) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if promiseWithoutCatch.MatchString(line) && !containsCatchNearby(scanner, i) {
			out = append(out, categorizedIssue{
				category: mmodel.CategoryReliability,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "promise chain has no .catch and can produce an unhandled rejection",
					Severity:   mmodel.SeverityMedium,
					RuleID:     "unhandled-promise-rejection",
					Suggestion: "append a .catch or wrap the await in try/catch",
				},
			})
		}
	}

	return out
}

func containsCatchNearby(scanner *Scanner, line int) bool {
	end := line + 3
	if end > len(scanner.Lines) {
		end = len(scanner.Lines)
	}

	for i := line; i < end; i++ {
		if regexp.MustCompile(`\.catch\s*\(`).MatchString(scanner.Lines[i]) {
			return true
		}
	}

	return false
}
