package scoring

import (
	"math"
	"testing"
)

func TestBannerQuality(t *testing.T) {
	perfect := BannerSignals{Exists: true, Clear: true, AcceptAll: true, RejectAll: true, Manage: true}

	tests := []struct {
		name       string
		banner     BannerSignals
		preConsent bool
		expected   float64
	}{
		{"absent banner clamps to zero", BannerSignals{Clear: true, AcceptAll: true, RejectAll: true, Manage: true}, false, 0},
		{"perfect banner", perfect, false, 1.0},
		{"perfect banner capped by pre-consent cookies", perfect, true, 0.75},
		{"partial controls", BannerSignals{Exists: true, Clear: true, RejectAll: true}, false, 0.85},
		{"partial controls capped", BannerSignals{Exists: true, Clear: true, RejectAll: true}, true, 0.75},
		{"manipulative wording", BannerSignals{Exists: true, Clear: true, Manipulative: true, AcceptAll: true, RejectAll: true, Manage: true}, false, 0.80},
		{"bare banner without controls", BannerSignals{Exists: true, Manipulative: true}, false, 0.05},
		{"below cap is untouched", BannerSignals{Exists: true, AcceptAll: true}, true, 0.60},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := BannerQuality(tc.banner, tc.preConsent, 0.20)
			if math.Abs(got-tc.expected) > 1e-9 {
				t.Fatalf("expected %.4f got %.4f", tc.expected, got)
			}
			if got < 0 || got > 1 {
				t.Fatalf("score %v outside [0,1]", got)
			}
		})
	}
}

func TestPreConsentCookiesFired(t *testing.T) {
	tests := []struct {
		name     string
		before   map[string]any
		after    map[string]any
		expected bool
	}{
		{"equal non-zero totals", map[string]any{"necessary": 4.0, "uncategorized": 6.0}, map[string]any{"necessary": 10.0}, true},
		{"consent adds cookies", map[string]any{"necessary": 2.0}, map[string]any{"necessary": 2.0, "marketing": 5.0}, false},
		{"both empty", map[string]any{}, map[string]any{}, false},
		{"missing summaries", nil, nil, false},
		{"non numeric counts ignored", map[string]any{"necessary": "3", "bogus": "x"}, map[string]any{"necessary": 3}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := PreConsentCookiesFired(tc.before, tc.after); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestBannerSignalsFromDocument(t *testing.T) {
	doc := map[string]any{
		"banner_analysis": map[string]any{
			"consent_banner_existance": map[string]any{"exists": true},
			"consent_banner_quality":   map[string]any{"language_clarity": "true", "manipulative_wording": nil},
			"granular_controls":        "not an object",
		},
	}
	got := bannerSignals(doc)
	want := BannerSignals{Exists: true, Clear: true}
	if got != want {
		t.Fatalf("expected %+v got %+v", want, got)
	}
}
