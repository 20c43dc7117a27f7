package analyzer

import (
	"regexp"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

type semanticRule struct {
	ruleID     string
	re         *regexp.Regexp
	category   mmodel.IssueCategory
	severity   mmodel.Severity
	message    string
	suggestion string
}

// semanticRules covers §4.5.3 stage 4: higher-order, single-line-detectable
// patterns. Rules that genuinely require cross-line structural reasoning
// (event-handler error protection, queue-draining re-entrancy) are handled
// by runSemanticStructural below instead of a regexp.
var semanticRules = []semanticRule{
	{
		ruleID:     "retry-without-backoff",
		re:         regexp.MustCompile(`(?i)retry\s*\([^)]*\)|for\s*\(.*retr`),
		category:   mmodel.CategoryReliability,
		severity:   mmodel.SeverityMedium,
		message:    "retry loop with no delay or exponential backoff between attempts",
		suggestion: "back off between retries (e.g. cenkalti/backoff)",
	},
	{
		ruleID:     "unbounded-queue-growth",
		re:         regexp.MustCompile(`\.push\s*\([^)]*\)\s*;?\s*$`),
		category:   mmodel.CategoryMemoryLeak,
		severity:   mmodel.SeverityLow,
		message:    "queue/array grows without a bound or drain check",
		suggestion: "cap queue length or apply backpressure",
	},
	{
		ruleID:     "missing-graceful-shutdown",
		re:         regexp.MustCompile(`\.listen\s*\(`),
		category:   mmodel.CategoryReliability,
		severity:   mmodel.SeverityLow,
		message:    "server starts listening with no SIGINT/SIGTERM handler observed in file",
		suggestion: "register a shutdown signal handler to drain in-flight work",
	},
	{
		ruleID:     "non-deterministic-rng-in-retry",
		re:         regexp.MustCompile(`Math\.random\(\)`),
		category:   mmodel.CategoryTestability,
		severity:   mmodel.SeverityLow,
		message:    "non-deterministic randomness makes retry/test behavior unreproducible",
		suggestion: "inject a seeded source of randomness for tests",
	},
	{
		ruleID:     "fixed-window-rate-limiter",
		re:         regexp.MustCompile(`(?i)rate ?limit.*(reset|window)`),
		category:   mmodel.CategoryDesign,
		severity:   mmodel.SeverityLow,
		message:    "fixed-window rate limiter allows bursts at window boundaries",
		suggestion: "use a sliding-window or token-bucket limiter",
	},
	{
		ruleID:     "missing-monotonic-clock",
		re:         regexp.MustCompile(`Date\.now\(\)\s*-\s*\w+|new Date\(\)\.getTime\(\)`),
		category:   mmodel.CategoryObservability,
		severity:   mmodel.SeverityLow,
		message:    "interval math uses wall-clock time, which can jump backward",
		suggestion: "use a monotonic source (process.hrtime, performance.now)",
	},
	{
		ruleID:     "unbounded-cache-map",
		re:         regexp.MustCompile(`new Map\s*\(\s*\)|\{\s*\}\s*;?\s*//\s*cache`),
		category:   mmodel.CategoryMemoryLeak,
		severity:   mmodel.SeverityMedium,
		message:    "cache map has no eviction policy and will grow unbounded",
		suggestion: "add an LRU/TTL eviction policy",
	},
	{
		ruleID:     "non-atomic-counter",
		re:         regexp.MustCompile(`\w+\+\+\s*;?\s*$|\w+\s*\+=\s*1\s*;?\s*$`),
		category:   mmodel.CategoryConcurrency,
		severity:   mmodel.SeverityLow,
		message:    "counter mutation is not atomic under concurrent access",
		suggestion: "use an atomic primitive or a mutex-guarded update",
	},
	{
		ruleID:     "global-mutable-state",
		re:         regexp.MustCompile(`^(let|var)\s+\w+\s*=.*;\s*$`),
		category:   mmodel.CategoryDesign,
		severity:   mmodel.SeverityLow,
		message:    "module-level mutable state shared across request handlers",
		suggestion: "pass state explicitly instead of relying on module scope",
	},
	{
		ruleID:     "missing-backpressure",
		re:         regexp.MustCompile(`\.on\s*\(\s*["']data["']`),
		category:   mmodel.CategoryPerformance,
		severity:   mmodel.SeverityLow,
		message:    "stream consumed without checking write() return value for backpressure",
		suggestion: "pause the stream when write() returns false",
	},
	{
		ruleID:     "callback-nesting-depth",
		re:         regexp.MustCompile(`function\s*\([^)]*\)\s*\{[^{}]*function\s*\([^)]*\)\s*\{[^{}]*function\s*\([^)]*\)\s*\{`),
		category:   mmodel.CategoryDesign,
		severity:   mmodel.SeverityLow,
		message:    "deeply nested callbacks reduce readability and error handling",
		suggestion: "flatten with async/await or named functions",
	},
}

var (
	eventHandlerHead = regexp.MustCompile(`\.on\s*\(\s*["']\w+["']\s*,\s*(function|\()`)
	tryKeyword       = regexp.MustCompile(`\btry\b`)

	queueDrainLoopHead = regexp.MustCompile(`(?i)while\s*\(\s*\w*(queue|buffer)\w*(\.length|\.size)\b`)
	awaitKeyword       = regexp.MustCompile(`\bawait\b`)
	reentrancyGuard    = regexp.MustCompile(`(?i)\b(isDraining|draining|isProcessing|inFlight)\b`)

	sharedStateMutation = regexp.MustCompile(`^\s*\w+(\.\w+)*\s*(\+\+|--|\+=|-=|=\s*[^=])`)
)

func runSemanticDetectors(scanner *Scanner, _ string) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		for _, rule := range semanticRules {
			if rule.re.MatchString(line) {
				out = append(out, categorizedIssue{
					category: rule.category,
					issue: mmodel.Issue{
						Line:       i + 1,
						Message:    rule.message,
						Severity:   rule.severity,
						RuleID:     rule.ruleID,
						Suggestion: rule.suggestion,
					},
				})
			}
		}
	}

	out = append(out, runSemanticStructural(scanner)...)

	return out
}

// runSemanticStructural covers the stage-4 rules that need a lookahead
// window rather than a single-line match: an event handler registered
// without a nearby try (or .catch, covered by the async stage) around its
// body is flagged as unprotected; an async queue-drain loop with no
// re-entrancy guard; and shared state mutated immediately upon resuming
// from an await.
func runSemanticStructural(scanner *Scanner) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if !eventHandlerHead.MatchString(line) {
			continue
		}

		if hasNearbyGuard(scanner, i, tryKeyword) {
			continue
		}

		out = append(out, categorizedIssue{
			category: mmodel.CategoryReliability,
			issue: mmodel.Issue{
				Line:       i + 1,
				Message:    "event handler has no surrounding error protection",
				Severity:   mmodel.SeverityMedium,
				RuleID:     "unprotected-event-handler",
				Suggestion: "wrap the handler body in try/catch",
			},
		})
	}

	out = append(out, detectAsyncQueueReentrancy(scanner)...)
	out = append(out, detectSharedStateAfterAwait(scanner)...)

	return out
}

// detectAsyncQueueReentrancy flags a queue/buffer-draining while-loop whose
// body awaits (so a second, overlapping invocation of the same drain
// routine can interleave with the first) when the file shows no guard
// flag anywhere protecting re-entry.
func detectAsyncQueueReentrancy(scanner *Scanner) []categorizedIssue {
	for _, line := range scanner.Lines {
		if reentrancyGuard.MatchString(line) {
			return nil
		}
	}

	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if !queueDrainLoopHead.MatchString(line) {
			continue
		}

		if !hasNearbyGuard(scanner, i, awaitKeyword) {
			continue
		}

		out = append(out, categorizedIssue{
			category: mmodel.CategoryConcurrency,
			issue: mmodel.Issue{
				Line:       i + 1,
				Message:    "queue-draining loop awaits inside its body with no re-entrancy guard, so an overlapping call can drain the same items twice",
				Severity:   mmodel.SeverityMedium,
				RuleID:     "async-queue-reentrancy",
				Suggestion: "guard the drain loop with an in-progress flag or mutex so overlapping calls can't interleave",
			},
		})
	}

	return out
}

// detectSharedStateAfterAwait flags a mutation statement in the few lines
// immediately following an await: by the time execution resumes, a
// concurrent invocation may already have observed or changed the same
// state, so mutating it here without re-validating is a race.
func detectSharedStateAfterAwait(scanner *Scanner) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if !awaitKeyword.MatchString(line) {
			continue
		}

		end := i + 1 + 4
		if end > len(scanner.Lines) {
			end = len(scanner.Lines)
		}

		for j := i + 1; j < end; j++ {
			if !sharedStateMutation.MatchString(scanner.Lines[j]) {
				continue
			}

			out = append(out, categorizedIssue{
				category: mmodel.CategoryConcurrency,
				issue: mmodel.Issue{
					Line:       j + 1,
					Message:    "shared state is mutated immediately after resuming from an await, where a concurrent invocation may already have changed it",
					Severity:   mmodel.SeverityMedium,
					RuleID:     "shared-state-after-await",
					Suggestion: "re-read or re-validate shared state after resuming from await, or serialize access with a lock",
				},
			})

			break
		}
	}

	return out
}

func hasNearbyGuard(scanner *Scanner, line int, guard *regexp.Regexp) bool {
	end := line + 5
	if end > len(scanner.Lines) {
		end = len(scanner.Lines)
	}

	for i := line; i < end; i++ {
		if guard.MatchString(scanner.Lines[i]) {
			return true
		}
	}

	return false
}
