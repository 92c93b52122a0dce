package scoring

import "strings"

// breachKeys are the field names breach history has been published under, in lookup order.
var breachKeys = []string{"breach_data", "breach_history", "breaches"}

func breachCount(doc map[string]any) int {
	for _, key := range breachKeys {
		if list, ok := doc[key].([]any); ok {
			return len(list)
		}
	}
	return 0
}

// BreachScore deducts penaltyPerBreach for every recorded breach, never going below zero.
func BreachScore(breaches int, penaltyPerBreach float64) float64 {
	score := 1.0 - penaltyPerBreach*float64(breaches)
	if score < 0 {
		return 0
	}
	return score
}

func contactEmail(doc map[string]any) string {
	if email := strings.TrimSpace(stringAt(doc, "bcti_data", "contactemail")); email != "" {
		return email
	}
	return strings.TrimSpace(stringAt(doc, "metadata", "contact_email"))
}

// TransparencyScore is 1.0 when a usable contact email is published, 0.8 otherwise.
func TransparencyScore(email string) float64 {
	if email != "" && !strings.Contains(strings.ToLower(email), "redacted") {
		return 1.0
	}
	return 0.8
}
