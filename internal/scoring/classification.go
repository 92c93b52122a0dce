package scoring

import "fmt"

// ClassificationRule selects how the cookie category summaries are compared.
type ClassificationRule string

const (
	// RuleUncategorizedStable scores 1.0 when the uncategorized cookie count is the same
	// before and after consent.
	RuleUncategorizedStable ClassificationRule = "uncategorized_stable"
	// RuleUncategorizedAfter penalizes any uncategorized cookie left after consent.
	RuleUncategorizedAfter ClassificationRule = "uncategorized_after"
)

const (
	uncategorizedKey           = "uncategorized"
	classificationInconsistent = 0.9
)

func (r ClassificationRule) validate() error {
	switch r {
	case RuleUncategorizedStable, RuleUncategorizedAfter:
		return nil
	default:
		return fmt.Errorf("unknown classification rule %q", string(r))
	}
}

// CookieClassificationScore checks the category summaries for consistency. It is a
// measurement sanity check, so a mismatch costs a little rather than failing the site.
func CookieClassificationScore(before, after map[string]any, rule ClassificationRule) float64 {
	switch rule {
	case RuleUncategorizedAfter:
		if summaryCount(after, uncategorizedKey) > 0 {
			return classificationInconsistent
		}
		return 1.0
	default:
		if summaryCount(before, uncategorizedKey) == summaryCount(after, uncategorizedKey) {
			return 1.0
		}
		return classificationInconsistent
	}
}
