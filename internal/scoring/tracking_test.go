package scoring

import "testing"

func TestTrackingScore(t *testing.T) {
	tests := []struct {
		name          string
		requests      []Request
		countSuspects bool
		expected      float64
	}{
		{"no requests", nil, false, 1.0},
		{"no trackers", []Request{{URL: "https://a"}, {URL: "https://b"}}, false, 1.0},
		{"one advertising of four", []Request{{Category: "Advertising"}, {}, {}, {}}, false, 0.75},
		{"category is trimmed and case insensitive", []Request{{Category: " SOCIAL "}, {}}, false, 0.5},
		{"fingerprinting counts twice", []Request{{Category: "Fingerprinting Invasive"}, {}, {}, {}}, false, 0.5},
		{"negative ratio clamps to zero", []Request{{Category: "fingerprinting invasive"}}, false, 0},
		{"analytics ignored", []Request{{Category: "analytics"}, {}}, false, 1.0},
		{"suspects ignored by default", []Request{{Category: "analytics", TrackingSuspect: true}, {}}, false, 1.0},
		{"suspects counted when enabled", []Request{{Category: "analytics", TrackingSuspect: true}, {}}, true, 0.5},
		{"suspect already counted by category", []Request{{Category: "advertising", TrackingSuspect: true}, {}, {}, {}}, true, 0.75},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := TrackingScore(tc.requests, tc.countSuspects)
			if got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}

func TestParseRequests(t *testing.T) {
	raw := []any{
		map[string]any{"url": "https://ads.example/px", "_tracker": map[string]any{"category": "advertising", "tracking_suspect": true}},
		map[string]any{"url": "https://example.com/"},
		"not an object",
	}
	requests := parseRequests(raw)
	if len(requests) != 3 {
		t.Fatalf("expected 3 requests got %d", len(requests))
	}
	if requests[0].Category != "advertising" || !requests[0].TrackingSuspect {
		t.Fatalf("unexpected tracker parse: %+v", requests[0])
	}
	if requests[1].Category != "" || requests[1].TrackingSuspect {
		t.Fatalf("expected untracked request: %+v", requests[1])
	}
}

func TestSecurityScore(t *testing.T) {
	tests := []struct {
		name     string
		requests []Request
		expected float64
	}{
		{"no requests", nil, 1.0},
		{"all https", []Request{{URL: "https://a.example"}, {URL: "HTTPS://b.example"}}, 1.0},
		{"one plain http", []Request{{URL: "https://a.example"}, {URL: "http://b.example"}}, 0.9},
		{"missing url", []Request{{}}, 0.9},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SecurityScore(tc.requests); got != tc.expected {
				t.Fatalf("expected %v got %v", tc.expected, got)
			}
		})
	}
}
