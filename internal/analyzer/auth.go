package analyzer

import (
	"regexp"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// authGateMarker restricts stage 5 to files that plausibly implement a
// token-refresh/waiter-queue pattern at all (§4.5.3: "gate on keyword
// markers").
var authGateMarker = regexp.MustCompile(`(?i)\b(waiters?|pending(Requests|Queue)?|refresh(ing)?|isRefreshing)\b`)

var (
	waiterQueuePush  = regexp.MustCompile(`\b(waiters?|pending\w*)\b[^\n]*\.push\s*\(`)
	waiterQueueDrain = regexp.MustCompile(`\b(waiters?|pending\w*)\b[^\n]*\.(shift|pop|splice)\s*\(|\.forEach\s*\(`)
	resolveCall      = regexp.MustCompile(`\bresolve\s*\(`)
	rejectOrCatch    = regexp.MustCompile(`\breject\s*\(|\bcatch\s*\(|\.catch\s*\(`)
	refreshFlagSet   = regexp.MustCompile(`\bisRefreshing\s*=\s*true\b`)
	refreshFlagClear = regexp.MustCompile(`\bisRefreshing\s*=\s*false\b`)
	finallyBlock     = regexp.MustCompile(`\bfinally\b`)
	staggerMarker    = regexp.MustCompile(`(?i)jitter|stagger|setTimeout|delay\s*\(`)
)

// runAuthDetectors covers §4.5.3 stage 5. Each rule is a whole-file
// structural heuristic rather than a per-line scan, since liveness and
// symmetry properties are not local to a single line.
func runAuthDetectors(scanner *Scanner, content string) []categorizedIssue {
	if !authGateMarker.MatchString(content) {
		return nil
	}

	var out []categorizedIssue

	if lost := detectLostRequestsOnError(content); lost != nil {
		out = append(out, *lost)
	}

	if hazard := detectRefreshFlagHazard(content); hazard != nil {
		out = append(out, *hazard)
	}

	if herd := detectThunderingHerd(scanner, content); herd != nil {
		out = append(out, *herd)
	}

	return out
}

func detectLostRequestsOnError(content string) *categorizedIssue {
	if !waiterQueuePush.MatchString(content) || !waiterQueueDrain.MatchString(content) {
		return nil
	}

	hasSuccessDrain := resolveCall.MatchString(content)
	hasErrorDrain := rejectOrCatch.MatchString(content)

	if hasSuccessDrain && !hasErrorDrain {
		return &categorizedIssue{
			category: mmodel.CategoryReliability,
			issue: mmodel.Issue{
				Line:       1,
				Message:    "waiter queue is drained on the success path only; a rejection leaves queued callers hanging forever",
				Severity:   mmodel.SeverityHigh,
				RuleID:     "lost-requests-on-error",
				Suggestion: "drain and reject the waiter queue in the error path too",
			},
		}
	}

	return nil
}

func detectRefreshFlagHazard(content string) *categorizedIssue {
	sets := len(refreshFlagSet.FindAllStringIndex(content, -1))
	clears := len(refreshFlagClear.FindAllStringIndex(content, -1))

	if sets == 0 {
		return nil
	}

	if sets != clears || !finallyBlock.MatchString(content) {
		return &categorizedIssue{
			category: mmodel.CategoryConcurrency,
			issue: mmodel.Issue{
				Line:       1,
				Message:    "refresh-in-progress flag is not symmetrically cleared in every path (missing scoped cleanup)",
				Severity:   mmodel.SeverityHigh,
				RuleID:     "refresh-flag-imbalance",
				Suggestion: "clear the flag in a finally block so every exit path resets it",
			},
		}
	}

	return nil
}

func detectThunderingHerd(scanner *Scanner, content string) *categorizedIssue {
	if !waiterQueueDrain.MatchString(content) {
		return nil
	}

	if staggerMarker.MatchString(content) {
		return nil
	}

	for i, line := range scanner.Lines {
		if waiterQueueDrain.MatchString(line) {
			return &categorizedIssue{
				category: mmodel.CategoryReliability,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "waiter queue is flushed with unbounded parallelism, risking a thundering herd against downstream services",
					Severity:   mmodel.SeverityMedium,
					RuleID:     "thundering-herd-flush",
					Suggestion: "stagger the flush with jitter or a concurrency cap",
				},
			}
		}
	}

	return nil
}
