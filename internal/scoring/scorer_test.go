package scoring

import (
	"encoding/json"
	"testing"
)

func newTestScorer(t *testing.T, profile string) *Scorer {
	t.Helper()
	scorer, err := NewScorer(Options{Profile: profile, Now: evaluationInstant, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	return scorer
}

func perfectBanner() map[string]any {
	return map[string]any{
		"consent_banner_existance": map[string]any{"exists": true},
		"consent_banner_quality":   map[string]any{"language_clarity": true, "manipulative_wording": false},
		"granular_controls": map[string]any{
			"accept_all_button_presence":         true,
			"reject_all_button_presence":         true,
			"manage_preferences_button_presence": true,
		},
	}
}

func TestScoreMinimalEndToEnd(t *testing.T) {
	summary := map[string]any{"necessary": 6, "analytics": 3, "uncategorized": 1}
	doc := map[string]any{
		"banner_analysis": perfectBanner(),
		"before_consent":  map[string]any{"cookie_category_summary": summary, "cookies": []any{}},
		"after_consent":   map[string]any{"cookie_category_summary": summary, "cookies": []any{map[string]any{"name": "sid"}}},
		"breach_data":     []any{map[string]any{"year": 2019}, map[string]any{"year": 2022}},
		"metadata":        map[string]any{"url": "https://example.com", "title": "Example"},
	}

	report, err := newTestScorer(t, ProfileMinimal).Score(doc)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	// 0.75*0.25 + 1.0*0.25 + 1.0*0.25 + 0.80*0.15 + 1.0*0.10
	if report.ComplianceScore != 90.75 {
		t.Fatalf("expected 90.75 got %v", report.ComplianceScore)
	}
	if report.Metadata["compliance_score"] != 90.75 {
		t.Fatalf("expected compliance_score in metadata, got %v", report.Metadata["compliance_score"])
	}
	if report.Metadata["title"] != "Example" || report.Metadata["url"] != "https://example.com" {
		t.Fatalf("expected original metadata to be preserved: %v", report.Metadata)
	}
	if _, ok := report.Metadata["domain_score"]; ok {
		t.Fatal("minimal profile must not report domain_score")
	}

	p := report.Parameters
	if !p.PreConsentCookiesFired {
		t.Fatal("expected pre-consent cookies to be detected")
	}
	if p.BannerQualityScore != 0.75 || p.CookieScore != 1.0 || p.TrackingScore != 1.0 || p.BreachScore != 0.8 || p.ExpiryScore != 1.0 {
		t.Fatalf("unexpected parameters %+v", p)
	}
	if p.TransparencyScore != nil || p.SecurityScore != nil || p.DomainScore != nil {
		t.Fatalf("minimal profile leaked optional dimensions: %+v", p)
	}
	if p.BreachCount != 2 || p.LongLivedCookieCount != 0 || len(p.CookieExpiryReport) != 0 {
		t.Fatalf("unexpected diagnostics %+v", p)
	}

	if _, ok := doc["metadata"].(map[string]any)["compliance_score"]; ok {
		t.Fatal("scoring must not mutate the input document")
	}
}

func TestScoreMinimalIgnoresCategorizedCookiesAddedByConsent(t *testing.T) {
	doc := map[string]any{
		"banner_analysis": perfectBanner(),
		"before_consent":  map[string]any{"cookie_category_summary": map[string]any{"necessary": 3}},
		"after_consent":   map[string]any{"cookie_category_summary": map[string]any{"necessary": 3, "marketing": 4}},
		"metadata":        map[string]any{"url": "https://example.com"},
	}

	report, err := newTestScorer(t, ProfileMinimal).Score(doc)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if report.Parameters.CookieScore != 1.0 || report.Parameters.PreConsentCookiesFired {
		t.Fatalf("unexpected parameters %+v", report.Parameters)
	}
	if report.ComplianceScore != 100 {
		t.Fatalf("expected 100 got %v", report.ComplianceScore)
	}
}

func TestScoreFullProfile(t *testing.T) {
	doc := map[string]any{
		"banner_analysis": map[string]any{
			"consent_banner_existance": map[string]any{"exists": true},
			"consent_banner_quality":   map[string]any{"language_clarity": true},
			"granular_controls": map[string]any{
				"accept_all_button_presence": true,
				"reject_all_button_presence": true,
			},
		},
		"before_consent": map[string]any{
			"cookie_category_summary": map[string]any{"necessary": 1},
			"cookies": []any{
				map[string]any{"name": "sid", "domain": ".example.com", "expires": daysFromNow(10)},
			},
		},
		"after_consent": map[string]any{
			"cookie_category_summary": map[string]any{"necessary": 1, "uncategorized": 1},
			"cookies": []any{
				map[string]any{"name": "_ga", "domain": ".tracker.net", "expires": daysFromNow(400) * 1000},
			},
		},
		"network_requests": []any{
			map[string]any{"url": "https://example.com/app.js"},
			map[string]any{"url": "http://ads.tracker.net/px", "_tracker": map[string]any{"category": "Advertising"}},
			map[string]any{"url": "https://cdn.example.net/f.js", "_tracker": map[string]any{"category": "analytics", "tracking_suspect": true}},
			map[string]any{"url": "https://example.com/api"},
		},
		"breach_history": []any{map[string]any{"year": 2021}},
		"bcti_data":      map[string]any{"contactemail": "privacy@example.com"},
		"metadata":       map[string]any{"url": "https://www.example.com/"},
	}

	report, err := newTestScorer(t, ProfileFull).Score(doc)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	// consent .85*.15 + cookies .9*.15 + tracking .5*.10 + transparency 1*.10 +
	// security .9*.10 + breach .75*.10 + expiry .5*.15 + domain .5*.15
	if report.ComplianceScore != 72.75 {
		t.Fatalf("expected 72.75 got %v", report.ComplianceScore)
	}

	p := report.Parameters
	if p.PreConsentCookiesFired {
		t.Fatal("cookie totals differ, pre-consent firing must be false")
	}
	if p.TransparencyScore == nil || *p.TransparencyScore != 1.0 {
		t.Fatalf("unexpected transparency %v", p.TransparencyScore)
	}
	if p.SecurityScore == nil || *p.SecurityScore != 0.9 {
		t.Fatalf("unexpected security %v", p.SecurityScore)
	}
	if p.DomainScore == nil || *p.DomainScore != 0.5 {
		t.Fatalf("unexpected domain %v", p.DomainScore)
	}
	if report.Metadata["domain_score"] != 0.5 {
		t.Fatalf("expected domain_score in metadata got %v", report.Metadata["domain_score"])
	}
	if p.LongLivedCookieCount != 1 || len(p.CookieExpiryReport) != 2 {
		t.Fatalf("unexpected expiry diagnostics %+v", p.CookieExpiryReport)
	}
	if len(p.Weights) != 8 {
		t.Fatalf("expected 8 weights got %d", len(p.Weights))
	}
}

func TestScoreSparseDocument(t *testing.T) {
	report, err := newTestScorer(t, ProfileMinimal).Score(map[string]any{})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// Missing banner scores 0; every other dimension passes vacuously.
	if report.ComplianceScore != 75 {
		t.Fatalf("expected 75 got %v", report.ComplianceScore)
	}
	if report.Parameters.CookieExpiryReport == nil {
		t.Fatal("expected an empty, non-nil expiry report")
	}
}

func TestScoreToleratesWrongTypes(t *testing.T) {
	doc := map[string]any{
		"banner_analysis":  []any{"nope"},
		"before_consent":   "text",
		"after_consent":    map[string]any{"cookie_category_summary": []any{1, 2}, "cookies": map[string]any{}},
		"network_requests": map[string]any{"url": "http://x"},
		"breach_data":      nil,
		"metadata":         42,
	}
	report, err := newTestScorer(t, ProfileFull).Score(doc)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if report.ComplianceScore < 0 || report.ComplianceScore > 100 {
		t.Fatalf("score out of range: %v", report.ComplianceScore)
	}
	if report.Metadata["profile"] != ProfileFull {
		t.Fatalf("expected profile in metadata, got %v", report.Metadata)
	}
}

func TestScoreRejectsNonObjects(t *testing.T) {
	scorer := newTestScorer(t, "")
	for _, input := range []any{nil, []any{}, "doc", 12.5, map[string]any(nil)} {
		if _, err := scorer.Score(input); !IsInvalidInput(err) {
			t.Fatalf("input %#v: expected InvalidInputError got %v", input, err)
		}
	}

	for _, raw := range []string{"", "null", "[1,2]", "\"text\"", "{broken"} {
		if _, err := ScoreJSON([]byte(raw), Options{Logger: quietLogger()}); !IsInvalidInput(err) {
			t.Fatalf("json %q: expected InvalidInputError got %v", raw, err)
		}
	}
}

func TestScoreJSONWithMixedExpiry(t *testing.T) {
	raw := `{
		"before_consent": {"cookies": [
			{"name": "a", "domain": ".example.com", "expires": 1741435200},
			{"name": "b", "domain": ".example.com", "expires": "never"},
			{"name": "c", "domain": ".example.com", "expires": 1775131200000}
		]},
		"metadata": {"url": "example.com"}
	}`
	report, err := ScoreJSON([]byte(raw), Options{Now: evaluationInstant, Logger: quietLogger()})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	// a expires in 7 days, c in 397 days, b is skipped.
	if report.Parameters.ExpiryScore != 0.5 {
		t.Fatalf("expected expiry 0.5 got %v", report.Parameters.ExpiryScore)
	}
	if report.Parameters.LongLivedCookieCount != 1 {
		t.Fatalf("expected one long lived cookie got %d", report.Parameters.LongLivedCookieCount)
	}
	names := []string{}
	for _, d := range report.Parameters.CookieExpiryReport {
		names = append(names, d.Name)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "c" {
		t.Fatalf("unexpected report rows %v", names)
	}
}

func TestScoreBoundsAcrossVariants(t *testing.T) {
	banners := []map[string]any{nil, perfectBanner()}
	requestSets := [][]any{
		nil,
		{map[string]any{"_tracker": map[string]any{"category": "fingerprinting invasive"}}},
		{map[string]any{"url": "https://a"}, map[string]any{"_tracker": map[string]any{"category": "social"}}},
	}
	breachSets := [][]any{nil, make([]any, 3), make([]any, 40)}

	for _, profile := range ProfileNames() {
		scorer := newTestScorer(t, profile)
		for _, banner := range banners {
			for _, requests := range requestSets {
				for _, breaches := range breachSets {
					doc := map[string]any{
						"banner_analysis":  banner,
						"network_requests": requests,
						"breach_data":      breaches,
					}
					report, err := scorer.Score(doc)
					if err != nil {
						t.Fatalf("score: %v", err)
					}
					if report.ComplianceScore < 0 || report.ComplianceScore > 100 {
						t.Fatalf("%s: composite out of range %v", profile, report.ComplianceScore)
					}
					p := report.Parameters
					for _, v := range []float64{p.BannerQualityScore, p.CookieScore, p.TrackingScore, p.BreachScore, p.ExpiryScore} {
						if v < 0 || v > 1 {
							t.Fatalf("%s: sub-score out of range %+v", profile, p)
						}
					}
				}
			}
		}
	}
}

func TestReportJSONShape(t *testing.T) {
	report, err := newTestScorer(t, ProfileMinimal).Score(map[string]any{"metadata": map[string]any{"url": "https://example.com"}})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := decoded["metadata"]["compliance_score"]; !ok {
		t.Fatalf("missing metadata.compliance_score in %s", data)
	}
	for _, key := range []string{"banner_quality_score", "expiry_score", "long_lived_cookie_count", "cookie_expiry_report"} {
		if _, ok := decoded["parameters"][key]; !ok {
			t.Fatalf("missing parameters.%s in %s", key, data)
		}
	}
	if _, ok := decoded["parameters"]["domain_score"]; ok {
		t.Fatalf("unexpected domain_score for minimal profile in %s", data)
	}
}
