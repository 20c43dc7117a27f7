package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

func newTestAnalyzer(cfg Config) *Analyzer {
	return New(cfg, nil, nil, mlog.NewNop(), noop.NewTracerProvider().Tracer("test"))
}

// S1: eval(input) on a single line must produce a no-eval issue at line 1
// with high/critical severity, and the report must still include metrics.
func TestAnalyze_EvalProducesNoEvalSecurityIssue(t *testing.T) {
	a := newTestAnalyzer(Config{})

	report, err := a.Analyze(context.Background(), "a.js", []byte("eval(input)\n"))
	require.NoError(t, err)

	require.NotEmpty(t, report.Security)

	found := false

	for _, issue := range report.Security {
		if issue.RuleID == "no-eval" {
			found = true

			assert.Equal(t, 1, issue.Line)
			assert.Contains(t, []mmodel.Severity{mmodel.SeverityHigh, mmodel.SeverityCritical}, issue.Severity)
		}
	}

	assert.True(t, found, "expected a no-eval issue")
}

// S3: a file shorter than min_lines_for_ai must still produce a complete
// report with no AI suggestions, and the AI detector must not be invoked.
func TestAnalyze_ShortFileSkipsAIDetector(t *testing.T) {
	a := newTestAnalyzer(Config{EnableAI: true, MinLinesForAI: 10, MaxLinesForAI: 500})

	report, err := a.Analyze(context.Background(), "short.js", []byte("const x = 1;\nconst y = 2;\nconsole.log(x + y);\n"))
	require.NoError(t, err)

	assert.Empty(t, report.AISuggestions)
}

// S6: a while(true) loop with an internal break must not trigger the
// infinite-loop rule; removing the break must trigger it at critical
// severity.
func TestAnalyze_InfiniteLoopRuleRespectsBreak(t *testing.T) {
	a := newTestAnalyzer(Config{})

	withBreak := "function poll() {\n  while (true) {\n    if (done()) {\n      break;\n    }\n  }\n}\n"

	report, err := a.Analyze(context.Background(), "poll.js", []byte(withBreak))
	require.NoError(t, err)

	for _, issue := range report.Security {
		assert.NotEqual(t, "infinite-loop-without-break", issue.RuleID)
	}

	withoutBreak := "function poll() {\n  while (true) {\n    doWork();\n  }\n}\n"

	report, err = a.Analyze(context.Background(), "poll.js", []byte(withoutBreak))
	require.NoError(t, err)

	var hit *mmodel.Issue

	for i, issue := range report.Security {
		if issue.RuleID == "infinite-loop-without-break" {
			hit = &report.Security[i]
		}
	}

	require.NotNil(t, hit)
	assert.Equal(t, mmodel.SeverityCritical, hit.Severity)
}

func TestAnalyze_ForceFailEscapeHatch(t *testing.T) {
	a := newTestAnalyzer(Config{AllowForceFail: true})

	_, err := a.Analyze(context.Background(), "force_fail.js", []byte("x"))
	require.Error(t, err)

	var analysisErr *AnalysisError
	require.ErrorAs(t, err, &analysisErr)
	assert.Equal(t, KindForcedFailure, analysisErr.Kind)
}

func TestRouteCategory_FollowsFixedMapping(t *testing.T) {
	assert.Equal(t, "security", RouteCategory(mmodel.CategoryConcurrency))
	assert.Equal(t, "security", RouteCategory(mmodel.CategoryReliability))
	assert.Equal(t, "performance", RouteCategory(mmodel.CategoryMemoryLeak))
	assert.Equal(t, "performance", RouteCategory(mmodel.CategoryObservability))
	assert.Equal(t, "performance", RouteCategory(mmodel.CategoryTestability))
	assert.Equal(t, "style", RouteCategory(mmodel.CategoryDesign))
	assert.Equal(t, "security", RouteCategory(mmodel.CategorySecurity))
	assert.Equal(t, "performance", RouteCategory(mmodel.CategoryPerformance))
	assert.Equal(t, "style", RouteCategory(mmodel.CategoryMaintainability))
}

func TestScanner_LoopDepthNestedRegex(t *testing.T) {
	content := "for (let i = 0; i < n; i++) {\n  while (hasMore()) {\n    const re = new RegExp(pattern);\n  }\n}\n"
	scanner := NewScanner(content)

	issues := runGenericPatternDetector(scanner, content)

	count := 0

	for _, ci := range issues {
		if ci.issue.RuleID == "regex-in-loop" {
			count++
			assert.Equal(t, 3, ci.issue.Line)
		}
	}

	assert.Equal(t, 1, count, "regex-in-loop should fire exactly once")
}
