package analyzer

import (
	"regexp"

	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

var (
	javaXMLFeatureDisable = regexp.MustCompile(`DocumentBuilderFactory|SAXParserFactory|XMLInputFactory`)
	javaExternalEntities  = regexp.MustCompile(`setFeature\s*\(\s*["']http://apache\.org/xml/features/disallow-doctype-decl["']\s*,\s*true`)
	httpURLLiteral        = regexp.MustCompile(`(?i)["']http://`)
)

// runJavaDetectors covers §4.5.3 stage 2's java-specific predicates: an
// XML parser factory present without the disallow-doctype-decl feature
// toggled on is vulnerable to XXE, and a plaintext http:// endpoint
// literal flags missing transport security.
func runJavaDetectors(scanner *Scanner, content string) []categorizedIssue {
	var out []categorizedIssue

	if javaXMLFeatureDisable.MatchString(content) && !javaExternalEntities.MatchString(content) {
		out = append(out, categorizedIssue{
			category: mmodel.CategorySecurity,
			issue: mmodel.Issue{
				Line:       1,
				Message:    "XML parser factory configured without disabling external entity resolution (XXE)",
				Severity:   mmodel.SeverityHigh,
				RuleID:     "xxe-not-disabled",
				Suggestion: `call setFeature("http://apache.org/xml/features/disallow-doctype-decl", true)`,
			},
		})
	}

	for i, line := range scanner.Lines {
		if httpURLLiteral.MatchString(line) {
			out = append(out, categorizedIssue{
				category: mmodel.CategorySecurity,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "plaintext http:// endpoint literal",
					Severity:   mmodel.SeverityMedium,
					RuleID:     "missing-https",
					Suggestion: "use https:// for network endpoints",
				},
			})
		}
	}

	return out
}

var (
	pythonPickleLoad = regexp.MustCompile(`pickle\.load\s*\(`)
	pythonYAMLUnsafe = regexp.MustCompile(`yaml\.load\s*\([^)]*\)`)
	pythonYAMLSafe   = regexp.MustCompile(`Loader\s*=\s*yaml\.SafeLoader|yaml\.safe_load`)
	pythonAssertAuth = regexp.MustCompile(`assert\s+.*\b(auth|permission|is_admin)\b`)
)

// runPythonDetectors covers §4.5.3 stage 2's python-specific predicates:
// unsafe deserialization via pickle/yaml.load, and asserting auth checks
// (asserts are compiled out under -O, silently disabling the check).
func runPythonDetectors(scanner *Scanner, content string) []categorizedIssue {
	var out []categorizedIssue

	for i, line := range scanner.Lines {
		if pythonPickleLoad.MatchString(line) {
			out = append(out, categorizedIssue{
				category: mmodel.CategorySecurity,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "pickle.load on untrusted input allows arbitrary code execution",
					Severity:   mmodel.SeverityCritical,
					RuleID:     "unsafe-pickle-load",
					Suggestion: "use a safe serialization format (json, protobuf) for untrusted data",
				},
			})
		}

		if pythonYAMLUnsafe.MatchString(line) && !pythonYAMLSafe.MatchString(line) {
			out = append(out, categorizedIssue{
				category: mmodel.CategorySecurity,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "yaml.load without a safe loader can construct arbitrary Python objects",
					Severity:   mmodel.SeverityHigh,
					RuleID:     "unsafe-yaml-load",
					Suggestion: "use yaml.safe_load or Loader=yaml.SafeLoader",
				},
			})
		}

		if pythonAssertAuth.MatchString(line) {
			out = append(out, categorizedIssue{
				category: mmodel.CategorySecurity,
				issue: mmodel.Issue{
					Line:       i + 1,
					Message:    "authorization check expressed as an assert (stripped under -O)",
					Severity:   mmodel.SeverityHigh,
					RuleID:     "auth-check-via-assert",
					Suggestion: "raise an explicit exception instead of asserting",
				},
			})
		}
	}

	return out
}
