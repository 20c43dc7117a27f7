package analyzer

import (
	"regexp"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// patternRule is a single compiled, line-oriented rule. loopGuarded rules
// are only evaluated on lines the Scanner reports as inside a loop. bucket
// is the Report bucket this rule's findings belong in, expressed as the
// category of the same name (security, performance or style); the
// category-routing table in bucketize maps each of these straight back to
// its own bucket.
type patternRule struct {
	ruleID      string
	re          *regexp.Regexp
	severity    mmodel.Severity
	message     string
	suggestion  string
	loopGuarded bool
	bucket      mmodel.IssueCategory
}

var genericRules = []patternRule{
	{
		ruleID:     "no-eval",
		re:         regexp.MustCompile(`\beval\s*\(`),
		severity:   mmodel.SeverityCritical,
		message:    "dynamic code execution via eval is a command-injection vector",
		suggestion: "parse structured input instead of evaluating it as code",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "command-injection",
		re:         regexp.MustCompile(`\b(exec|execSync|spawn|child_process\.exec)\s*\([^)]*\+`),
		severity:   mmodel.SeverityCritical,
		message:    "shell command built from concatenated input",
		suggestion: "pass arguments as an array instead of building a shell string",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "sql-injection",
		re:         regexp.MustCompile(`(?i)(select|insert|update|delete)\b.{0,80}(\+|\$\{)`),
		severity:   mmodel.SeverityHigh,
		message:    "SQL statement built via string concatenation or interpolation",
		suggestion: "use a parameterized query",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "dom-xss",
		re:         regexp.MustCompile(`\.(innerHTML|outerHTML|document\.write)\s*=?\s*\(?.*(\+|\$\{)`),
		severity:   mmodel.SeverityHigh,
		message:    "dynamic content written to a DOM sink without sanitization",
		suggestion: "use textContent or a sanitizing renderer",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "hardcoded-credential",
		re:         regexp.MustCompile(`(?i)(password|secret|api_?key|token)\s*[:=]\s*["'][^"']{8,}["']`),
		severity:   mmodel.SeverityHigh,
		message:    "credential literal hardcoded in source",
		suggestion: "load credentials from environment or a secret manager",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "weak-digest",
		re:         regexp.MustCompile(`(?i)(md5|sha1)\s*\([^)]*password`),
		severity:   mmodel.SeverityHigh,
		message:    "weak digest algorithm used for password hashing",
		suggestion: "use bcrypt, scrypt, or argon2",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "open-redirect",
		re:         regexp.MustCompile(`(?i)redirect\s*\(\s*req\.(query|params|body)`),
		severity:   mmodel.SeverityMedium,
		message:    "redirect target taken directly from request input",
		suggestion: "validate the redirect target against an allow-list",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "insecure-random",
		re:         regexp.MustCompile(`(?i)(token|session|secret|id)\s*=.*Math\.random\(\)`),
		severity:   mmodel.SeverityHigh,
		message:    "Math.random is not cryptographically secure",
		suggestion: "use crypto.randomBytes or crypto/rand",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "empty-catch",
		re:         regexp.MustCompile(`catch\s*\([^)]*\)\s*\{\s*\}`),
		severity:   mmodel.SeverityMedium,
		message:    "empty exception handler swallows the error",
		suggestion: "log or rethrow the caught error",
		bucket:     mmodel.CategoryStyle,
	},
	{
		ruleID:     "path-traversal",
		re:         regexp.MustCompile(`(?i)(readFile|createReadStream|open)\s*\([^)]*(req\.(query|params|body)|\+)`),
		severity:   mmodel.SeverityHigh,
		message:    "file path built from unvalidated input",
		suggestion: "resolve and validate the path against an allowed base directory",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:     "prototype-pollution",
		re:         regexp.MustCompile(`\[\s*["'`+"`"+`]__proto__["'`+"`"+`]\s*\]`),
		severity:   mmodel.SeverityHigh,
		message:    "direct assignment to __proto__ enables prototype pollution",
		suggestion: "use Object.create(null) or validate keys before assignment",
		bucket:     mmodel.CategorySecurity,
	},
	{
		ruleID:      "n-plus-one-query",
		re:          regexp.MustCompile(`(?i)\.(query|find|findOne|exec)\s*\(`),
		severity:    mmodel.SeverityMedium,
		message:     "database call issued inside a loop (N+1 query pattern)",
		suggestion:  "batch the lookups outside the loop",
		loopGuarded: true,
		bucket:      mmodel.CategoryPerformance,
	},
	{
		ruleID:     "sync-blocking-io",
		re:         regexp.MustCompile(`\b(readFileSync|execSync|writeFileSync)\s*\(`),
		severity:   mmodel.SeverityMedium,
		message:    "synchronous blocking I/O call",
		suggestion: "use the asynchronous variant",
		bucket:     mmodel.CategoryPerformance,
	},
	{
		ruleID:      "string-concat-in-loop",
		re:          regexp.MustCompile(`\w+\s*\+=\s*['"` + "`" + `]`),
		severity:    mmodel.SeverityLow,
		message:     "string concatenation in a loop is O(n^2)",
		suggestion:  "accumulate into an array and join once",
		loopGuarded: true,
		bucket:      mmodel.CategoryPerformance,
	},
	{
		ruleID:      "regex-in-loop",
		re:          regexp.MustCompile(`new\s+RegExp\s*\(`),
		severity:    mmodel.SeverityMedium,
		message:     "regular expression compiled on every loop iteration",
		suggestion:  "hoist the RegExp construction outside the loop",
		loopGuarded: true,
		bucket:      mmodel.CategoryPerformance,
	},
	{
		ruleID:     "loose-equality",
		re:         regexp.MustCompile(`[^=!]==[^=]|[^=!]!=[^=]`),
		severity:   mmodel.SeverityLow,
		message:    "loose equality coerces operand types implicitly",
		suggestion: "use === / !==",
		bucket:     mmodel.CategoryStyle,
	},
}

var infiniteLoopHead = regexp.MustCompile(`\b(while\s*\(\s*true\s*\)|for\s*\(\s*;\s*;\s*\))`)
var breakStatement = regexp.MustCompile(`\bbreak\b`)

var reqInputUsage = regexp.MustCompile(`\breq\.(body|params|query)\b`)
var validationKeyword = regexp.MustCompile(`(?i)\b(validate|schema|sanitize|joi|zod|yup|assert)\b`)

// runGenericPatternDetector evaluates §4.5.3 stage 1: the shared line-
// oriented rule set plus the standalone infinite-loop-without-break and
// missing-input-validation checks, neither of which reduces to a single-line
// regex match against genericRules.
func runGenericPatternDetector(scanner *Scanner, _ string) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		for _, rule := range genericRules {
			if rule.loopGuarded && !scanner.InLoop(i) {
				continue
			}

			if rule.re.MatchString(line) {
				out = append(out, categorizedIssue{
					category: rule.bucket,
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

	out = append(out, detectInfiniteLoop(scanner)...)
	out = append(out, detectMissingInputValidation(scanner)...)

	return out
}

// detectMissingInputValidation heuristically flags a line that reads
// request input (body/params/query) with no validation keyword anywhere
// on that same line. A single-line regexp can't express "and nothing else
// nearby validates this" (RE2 has no lookaround), so the positive and
// negative conditions are matched as two independent passes instead.
func detectMissingInputValidation(scanner *Scanner) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if !reqInputUsage.MatchString(line) || validationKeyword.MatchString(line) {
			continue
		}

		out = append(out, categorizedIssue{
			category: mmodel.CategorySecurity,
			issue: mmodel.Issue{
				Line:       i + 1,
				Message:    "request input is used without an accompanying validation or sanitization call",
				Severity:   mmodel.SeverityMedium,
				RuleID:     "missing-input-validation",
				Suggestion: "validate request body/params/query against a schema before use",
			},
		})
	}

	return out
}

// detectInfiniteLoop finds while(true)/for(;;) headers whose loop body
// (the brace-balanced block opened by that header) never contains a break.
func detectInfiniteLoop(scanner *Scanner) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if !infiniteLoopHead.MatchString(line) {
			continue
		}

		if loopBodyHasBreak(scanner, i) {
			continue
		}

		out = append(out, categorizedIssue{
			category: mmodel.CategorySecurity,
			issue: mmodel.Issue{
				Line:       i + 1,
				Message:    "infinite loop with no reachable break",
				Severity:   mmodel.SeverityCritical,
				RuleID:     "infinite-loop-without-break",
				Suggestion: "add a break/return reachable from every branch, or a bounded condition",
			},
		})
	}

	return out
}

func loopBodyHasBreak(scanner *Scanner, headLine int) bool {
	depthAtHead := scanner.LoopDepth[headLine]

	for i := headLine + 1; i < len(scanner.Lines); i++ {
		if scanner.LoopDepth[i] < depthAtHead {
			break
		}

		if breakStatement.MatchString(scanner.Lines[i]) {
			return true
		}
	}

	return false
}
