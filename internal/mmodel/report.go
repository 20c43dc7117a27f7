package mmodel

import "fmt"

// Severity is shared by Issue and AISuggestion.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// IssueCategory is the richer category set carried by non-pattern detectors
// before being routed into a Report bucket (see analyzer.RouteCategory).
type IssueCategory string

const (
	CategorySecurity       IssueCategory = "security"
	CategoryPerformance    IssueCategory = "performance"
	CategoryConcurrency    IssueCategory = "concurrency"
	CategoryMemoryLeak     IssueCategory = "memory-leak"
	CategoryReliability    IssueCategory = "reliability"
	CategoryObservability  IssueCategory = "observability"
	CategoryTestability    IssueCategory = "testability"
	CategoryMaintainability IssueCategory = "maintainability"
	CategoryDesign         IssueCategory = "design"
	CategoryStyle          IssueCategory = "style"
)

// Issue is a single finding produced by a detector.
type Issue struct {
	Line       int           `json:"line"`
	Column     int           `json:"column,omitempty"`
	Message    string        `json:"message"`
	Severity   Severity      `json:"severity"`
	RuleID     string        `json:"rule_id"`
	Suggestion string        `json:"suggestion"`
	Category   IssueCategory `json:"category,omitempty"`
}

// Validate enforces the §3 Issue invariants.
func (i Issue) Validate() error {
	if i.Line < 1 {
		return fmt.Errorf("issue %q: line must be >= 1, got %d", i.RuleID, i.Line)
	}

	switch i.Severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return fmt.Errorf("issue %q: invalid severity %q", i.RuleID, i.Severity)
	}

	if i.Message == "" {
		return fmt.Errorf("issue %q: message must not be empty", i.RuleID)
	}

	return nil
}

// AISuggestionCategory is the category set specific to AI suggestions,
// distinct from (but overlapping) IssueCategory.
type AISuggestionCategory string

const (
	AICategorySecurity    AISuggestionCategory = "security"
	AICategoryPerformance AISuggestionCategory = "performance"
	AICategoryLogic       AISuggestionCategory = "logic"
	AICategoryStyle       AISuggestionCategory = "style"
	AICategoryReliability AISuggestionCategory = "reliability"
)

// AISuggestion is a single finding produced by the AI detector.
type AISuggestion struct {
	Line          int                  `json:"line"`
	Severity      Severity             `json:"severity"`
	Category      AISuggestionCategory `json:"category"`
	IssueTitle    string               `json:"issue_title"`
	Explanation   string               `json:"explanation"`
	SuggestedFix  string               `json:"suggested_fix"`
}

// Validate enforces the §3 AISuggestion invariants.
func (s AISuggestion) Validate() error {
	if s.Line < 1 {
		return fmt.Errorf("ai suggestion: line must be >= 1, got %d", s.Line)
	}

	switch s.Severity {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
	default:
		return fmt.Errorf("ai suggestion: invalid severity %q", s.Severity)
	}

	switch s.Category {
	case AICategorySecurity, AICategoryPerformance, AICategoryLogic, AICategoryStyle, AICategoryReliability:
	default:
		return fmt.Errorf("ai suggestion: invalid category %q", s.Category)
	}

	if s.IssueTitle == "" || s.Explanation == "" || s.SuggestedFix == "" {
		return fmt.Errorf("ai suggestion: title, explanation and suggested_fix must be non-empty")
	}

	return nil
}

// Metrics summarizes a single analysis run.
type Metrics struct {
	LinesAnalyzed    int    `json:"lines_analyzed"`
	IssuesFound      int    `json:"issues_found"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
	ReviewTimeText   string `json:"review_time_text"`
	CacheHit         bool   `json:"cache_hit"`
}

// Report is the structured output of the Analyzer for one file.
type Report struct {
	FileName     string         `json:"file_name"`
	Security     []Issue        `json:"security"`
	Performance  []Issue        `json:"performance"`
	Style        []Issue        `json:"style"`
	AISuggestions []AISuggestion `json:"ai_suggestions"`
	Metrics      Metrics        `json:"metrics"`
	QualityGrade string         `json:"quality_grade"`
}

// IssueCount returns the total number of issues across the three buckets,
// excluding AI suggestions (used by JobSummary.IssuesFound).
func (r *Report) IssueCount() int {
	return len(r.Security) + len(r.Performance) + len(r.Style)
}
