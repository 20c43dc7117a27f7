// Package analyzer implements the multi-stage static Analyzer described in
// §4.5: a pure composition of detectors over a single submitted file,
// producing a Report or an AnalysisError.
package analyzer

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// Config carries the environment-sourced knobs that gate optional stages.
type Config struct {
	EnableAI        bool
	MinLinesForAI   int
	MaxLinesForAI   int
	AllowForceFail  bool
	AIRequestTimeoutMS int
}

// Analyzer composes every detector stage in the fixed §4.5.3 order.
type Analyzer struct {
	cfg          Config
	linter       LinterClient
	ai           *AIDetector
	logger       mlog.Logger
	tracer       trace.Tracer
}

// New builds an Analyzer. linter and ai may be nil (no external linter /
// AI provider configured); both stages then contribute no issues.
func New(cfg Config, linter LinterClient, ai *AIDetector, logger mlog.Logger, tracer trace.Tracer) *Analyzer {
	return &Analyzer{cfg: cfg, linter: linter, ai: ai, logger: logger, tracer: tracer}
}

// Analyze runs every detector stage over content and assembles a Report.
// The only failure path is the allow_force_fail escape hatch; every other
// detector failure degrades gracefully and is reflected in the Report
// itself rather than as a returned error.
func (a *Analyzer) Analyze(ctx context.Context, fileName string, content []byte) (*mmodel.Report, error) {
	ctx, span := a.tracer.Start(ctx, "analyzer.analyze")
	defer span.End()

	start := time.Now()

	if a.cfg.AllowForceFail && fileName == "force_fail.js" {
		return nil, ForcedFailure()
	}

	contentStr := string(content)
	lang := DetectLanguage(fileName, contentStr)
	scanner := NewScanner(contentStr)

	var categorized []categorizedIssue

	categorized = append(categorized, runGenericPatternDetector(scanner, contentStr)...)

	switch lang {
	case LangJava:
		categorized = append(categorized, runJavaDetectors(scanner, contentStr)...)
	case LangPython:
		categorized = append(categorized, runPythonDetectors(scanner, contentStr)...)
	}

	if isJSFamily(lang) {
		if hasAsyncMarkers(contentStr) {
			categorized = append(categorized, runAsyncDetectors(scanner, contentStr)...)
		}

		categorized = append(categorized, runSemanticDetectors(scanner, contentStr)...)
		categorized = append(categorized, runAuthDetectors(scanner, contentStr)...)
		categorized = append(categorized, runLinterDetector(ctx, a.linter, a.logger, fileName, content)...)
	}

	security, performance, style := bucketize(categorized)

	lineCount := LineCount(contentStr)

	var aiSuggestions []mmodel.AISuggestion
	if ShouldRunAI(a.cfg.EnableAI, lineCount, a.cfg.MinLinesForAI, a.cfg.MaxLinesForAI) {
		aiSuggestions = a.ai.Review(ctx, fileName, content)
	}

	report := &mmodel.Report{
		FileName:      fileName,
		Security:      security,
		Performance:   performance,
		Style:         style,
		AISuggestions: aiSuggestions,
	}

	elapsed := time.Since(start)

	report.Metrics = mmodel.Metrics{
		LinesAnalyzed:    lineCount,
		IssuesFound:      report.IssueCount() + len(aiSuggestions),
		ProcessingTimeMS: elapsed.Milliseconds(),
		ReviewTimeText:   formatDuration(elapsed),
		CacheHit:         false,
	}
	report.QualityGrade = gradeFor(scoreReport(report))

	return report, nil
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	return fmt.Sprintf("%.1fs", d.Seconds())
}

// severityWeight tables implement §4.5.5's deterministic scoring function.
var securityWeights = map[mmodel.Severity]float64{
	mmodel.SeverityCritical: 15,
	mmodel.SeverityHigh:     10,
	mmodel.SeverityMedium:   5,
	mmodel.SeverityLow:      2,
}

var performanceWeights = map[mmodel.Severity]float64{
	mmodel.SeverityCritical: 10,
	mmodel.SeverityHigh:     7,
	mmodel.SeverityMedium:   4,
	mmodel.SeverityLow:      1,
}

var aiWeights = map[mmodel.Severity]float64{
	mmodel.SeverityCritical: 8,
	mmodel.SeverityHigh:     5,
	mmodel.SeverityMedium:   3,
	mmodel.SeverityLow:      1,
}

const styleWeight = 0.5

func scoreReport(report *mmodel.Report) float64 {
	score := 100.0

	for _, issue := range report.Security {
		score -= securityWeights[issue.Severity]
	}

	for _, issue := range report.Performance {
		score -= performanceWeights[issue.Severity]
	}

	for range report.Style {
		score -= styleWeight
	}

	for _, s := range report.AISuggestions {
		score -= aiWeights[s.Severity]
	}

	if score < 0 {
		score = 0
	}

	if score > 100 {
		score = 100
	}

	return score
}

func gradeFor(score float64) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}
