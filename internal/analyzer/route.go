package analyzer

import "github.com/rshsreehari/coderev-platform/internal/mmodel"

// categorizedIssue pairs an Issue with the raw category a detector
// assigned it, before §4.5.4's routing collapses it into a Report bucket.
type categorizedIssue struct {
	issue    mmodel.Issue
	category mmodel.IssueCategory
}

// RouteCategory implements the fixed §4.5.4 category-to-bucket mapping.
func RouteCategory(category mmodel.IssueCategory) string {
	switch category {
	case mmodel.CategoryConcurrency, mmodel.CategoryReliability:
		return "security"
	case mmodel.CategoryMemoryLeak, mmodel.CategoryObservability, mmodel.CategoryTestability:
		return "performance"
	case mmodel.CategoryDesign:
		return "style"
	case mmodel.CategorySecurity:
		return "security"
	case mmodel.CategoryPerformance:
		return "performance"
	default:
		return "style"
	}
}

// bucketize splits categorized issues into the three Report buckets,
// preserving detector-emission order within each bucket.
func bucketize(items []categorizedIssue) (security, performance, style []mmodel.Issue) {
	for _, item := range items {
		item.issue.Category = item.category

		switch RouteCategory(item.category) {
		case "security":
			security = append(security, item.issue)
		case "performance":
			performance = append(performance, item.issue)
		default:
			style = append(style, item.issue)
		}
	}

	return security, performance, style
}
