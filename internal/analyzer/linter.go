package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// LinterFinding is the shape a LinterClient reports one finding in,
// independent of the underlying linter's own JSON schema.
type LinterFinding struct {
	RuleID  string `json:"rule_id"`
	Line    int    `json:"line"`
	Level   string `json:"level"` // "error" or anything else (treated as warning)
	Message string `json:"message"`
}

// LinterClient is the §4.5.3 stage-6 "external linter adapter" contract.
// It is treated as an opaque detector: an unavailable or failing linter
// must degrade to no findings rather than fail analysis (§4.5.6).
type LinterClient interface {
	Lint(ctx context.Context, fileName string, content []byte) ([]LinterFinding, error)
}

// linterRuleBucket is the fixed rule-set-to-bucket mapping named in §4.5.3:
// configuration for this adapter is a static table, not a live linter
// ruleset config, so unknown rule ids fall back to "style".
var linterRuleBucket = map[string]string{
	"no-eval":                 "security",
	"no-implied-eval":         "security",
	"security/detect-object-injection": "security",
	"no-unused-vars":          "style",
	"no-console":              "style",
	"complexity":              "performance",
	"max-depth":               "performance",
	"no-await-in-loop":        "performance",
}

// ProcessLinterClient shells out to a configured external linter binary
// and parses its JSON findings, per §4.5.3's "process-exec binding".
type ProcessLinterClient struct {
	Binary  string
	Args    []string
	Timeout time.Duration
	Logger  mlog.Logger
}

func (c *ProcessLinterClient) Lint(ctx context.Context, fileName string, content []byte) ([]LinterFinding, error) {
	if c.Binary == "" {
		return nil, nil
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	tmp, err := os.CreateTemp("", "lint-*-"+sanitizeFileName(fileName))
	if err != nil {
		return nil, fmt.Errorf("analyzer: create lint temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("analyzer: write lint temp file: %w", err)
	}
	tmp.Close()

	args := append(append([]string{}, c.Args...), tmp.Name())

	cmd := exec.CommandContext(ctx, c.Binary, args...)

	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("analyzer: run linter %s: %w", c.Binary, err)
	}

	var findings []LinterFinding
	if err := json.Unmarshal(stdout.Bytes(), &findings); err != nil {
		return nil, fmt.Errorf("analyzer: decode linter output: %w", err)
	}

	return findings, nil
}

func sanitizeFileName(fileName string) string {
	out := []byte(fileName)
	for i, b := range out {
		if b == '/' || b == '\\' || b == ' ' {
			out[i] = '_'
		}
	}

	return string(out)
}

// runLinterDetector runs the configured LinterClient and maps findings to
// buckets. Any failure (unconfigured, timeout, non-zero exit, bad JSON)
// degrades to "no linter issues" and is only logged — it never fails the
// surrounding analysis (§4.5.6).
func runLinterDetector(ctx context.Context, client LinterClient, logger mlog.Logger, fileName string, content []byte) []categorizedIssue {
	if client == nil {
		return nil
	}

	findings, err := client.Lint(ctx, fileName, content)
	if err != nil {
		logger.Infof("linter adapter degraded to no findings: %v", err)
		return nil
	}

	out := make([]categorizedIssue, 0, len(findings))

	for _, f := range findings {
		bucket, known := linterRuleBucket[f.RuleID]
		if !known {
			bucket = "style"
		}

		severity := mmodel.SeverityMedium
		if f.Level == "error" {
			severity = mmodel.SeverityHigh
		}

		line := f.Line
		if line < 1 {
			line = 1
		}

		out = append(out, categorizedIssue{
			category: mmodel.IssueCategory(bucket),
			issue: mmodel.Issue{
				Line:       line,
				Message:    f.Message,
				Severity:   severity,
				RuleID:     f.RuleID,
				Suggestion: "see linter documentation for rule " + f.RuleID,
			},
		})
	}

	return out
}
