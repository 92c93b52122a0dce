package scoring

// BannerSignals captures the consent banner inspection results.
type BannerSignals struct {
	Exists       bool `json:"exists"`
	Clear        bool `json:"language_clarity"`
	Manipulative bool `json:"manipulative_wording"`
	AcceptAll    bool `json:"accept_all_button_presence"`
	RejectAll    bool `json:"reject_all_button_presence"`
	Manage       bool `json:"manage_preferences_button_presence"`
}

// preConsentCap is the best rating a banner can get when cookies fire regardless of consent.
const preConsentCap = 0.75

func bannerSignals(doc map[string]any) BannerSignals {
	banner := mapAt(doc, "banner_analysis")
	return BannerSignals{
		Exists:       boolAt(banner, "consent_banner_existance", "exists"),
		Clear:        boolAt(banner, "consent_banner_quality", "language_clarity"),
		Manipulative: boolAt(banner, "consent_banner_quality", "manipulative_wording"),
		AcceptAll:    boolAt(banner, "granular_controls", "accept_all_button_presence"),
		RejectAll:    boolAt(banner, "granular_controls", "reject_all_button_presence"),
		Manage:       boolAt(banner, "granular_controls", "manage_preferences_button_presence"),
	}
}

// PreConsentCookiesFired reports whether consent had no observable effect on cookie volume:
// the before and after totals match and are non-zero.
func PreConsentCookiesFired(before, after map[string]any) bool {
	total := summaryTotal(before)
	return total == summaryTotal(after) && total > 0
}

// BannerQuality rates the consent banner on an additive point scale clamped to [0,1].
func BannerQuality(b BannerSignals, preConsentFired bool, manipulativePenalty float64) float64 {
	score := 0.0
	if b.Exists {
		score += 0.50
	} else {
		score -= 1.00
	}
	if b.Clear {
		score += 0.25
	}
	if b.Manipulative {
		score -= manipulativePenalty
	}

	switch {
	case b.AcceptAll && b.RejectAll && b.Manage:
		score += 0.25
	case b.AcceptAll || b.RejectAll || b.Manage:
		score += 0.10
	default:
		score -= 0.25
	}

	score = clamp01(score)
	if preConsentFired && score > preConsentCap {
		score = preConsentCap
	}
	return score
}
