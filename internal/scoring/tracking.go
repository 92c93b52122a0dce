package scoring

import "strings"

// Request is the scoring view of a captured network request.
type Request struct {
	URL             string
	Category        string
	TrackingSuspect bool
}

// trackerWeights maps tracker categories to how many times a request counts against the site.
var trackerWeights = map[string]int{
	"advertising":             1,
	"social":                  1,
	"fingerprinting invasive": 2,
}

func parseRequests(raw []any) []Request {
	requests := make([]Request, 0, len(raw))
	for _, item := range raw {
		record, ok := item.(map[string]any)
		if !ok {
			// Still a request for the ratio denominator.
			requests = append(requests, Request{})
			continue
		}
		req := Request{}
		req.URL, _ = record["url"].(string)
		req.Category = stringAt(record, "_tracker", "category")
		req.TrackingSuspect = boolAt(record, "_tracker", "tracking_suspect")
		requests = append(requests, req)
	}
	return requests
}

// TrackingScore is one minus the weighted share of tracker requests, clamped to [0,1].
// With countSuspects, a request flagged as a tracking suspect counts once when its
// category does not already count.
func TrackingScore(requests []Request, countSuspects bool) float64 {
	if len(requests) == 0 {
		return 1.0
	}
	weighted := 0
	for _, req := range requests {
		category := strings.ToLower(strings.TrimSpace(req.Category))
		if w, ok := trackerWeights[category]; ok {
			weighted += w
			continue
		}
		if countSuspects && req.TrackingSuspect {
			weighted++
		}
	}
	return clamp01(1.0 - float64(weighted)/float64(len(requests)))
}

// SecurityScore is 1.0 when every request uses https, 0.9 otherwise.
func SecurityScore(requests []Request) float64 {
	for _, req := range requests {
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(req.URL)), "https://") {
			return 0.9
		}
	}
	return 1.0
}
