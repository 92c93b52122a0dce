package scoring

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"privacy-score/backend/internal/match"
)

// Options configures a Scorer.
type Options struct {
	// Profile names the weighting profile; empty selects DefaultProfile.
	Profile string
	// Now is the evaluation instant for cookie lifespans; zero means the wall clock.
	Now time.Time
	// Logger receives sub-score traces at debug level.
	Logger logrus.FieldLogger
}

// Scorer computes privacy compliance reports. It holds no per-document state, so a
// single Scorer may score many documents, concurrently if needed.
type Scorer struct {
	profile Profile
	now     time.Time
	log     logrus.FieldLogger
}

// Parameters holds every intermediate value behind a compliance score.
type Parameters struct {
	BannerQualityScore     float64               `json:"banner_quality_score"`
	PreConsentCookiesFired bool                  `json:"pre_consent_cookies_fired"`
	CookieScore            float64               `json:"cookie_score"`
	TrackingScore          float64               `json:"tracking_score"`
	TransparencyScore      *float64              `json:"transparency_score,omitempty"`
	SecurityScore          *float64              `json:"security_score,omitempty"`
	BreachScore            float64               `json:"breach_score"`
	BreachCount            int                   `json:"breach_count"`
	ExpiryScore            float64               `json:"expiry_score"`
	DomainScore            *float64              `json:"domain_score,omitempty"`
	LongLivedCookieCount   int                   `json:"long_lived_cookie_count"`
	CookieExpiryReport     []ExpiryDetail        `json:"cookie_expiry_report"`
	Weights                map[Dimension]float64 `json:"weights"`
}

// Report is the scoring output: the site metadata with the score injected, and the
// parameters it was derived from.
type Report struct {
	ComplianceScore float64        `json:"-"`
	Profile         string         `json:"-"`
	Metadata        map[string]any `json:"metadata"`
	Parameters      Parameters     `json:"parameters"`
}

// NewScorer resolves the weighting profile and returns a ready Scorer.
func NewScorer(opts Options) (*Scorer, error) {
	profile, err := LoadProfile(opts.Profile)
	if err != nil {
		return nil, err
	}
	return NewScorerWithProfile(profile, opts), nil
}

// NewScorerWithProfile builds a Scorer around an already validated profile.
func NewScorerWithProfile(profile Profile, opts Options) *Scorer {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Scorer{profile: profile, now: opts.Now, log: log}
}

// ScoreJSON decodes raw JSON and scores it.
func ScoreJSON(data []byte, opts Options) (Report, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return Report{}, err
	}
	scorer, err := NewScorer(opts)
	if err != nil {
		return Report{}, err
	}
	return scorer.Score(doc)
}

// Score computes the compliance report for one analysis document. Only a nil or
// non-object document is rejected; every missing section falls back to a neutral default.
func (s *Scorer) Score(doc any) (Report, error) {
	root, ok := doc.(map[string]any)
	if !ok || root == nil {
		return Report{}, &InvalidInputError{Reason: "expected a JSON object, got " + kindOf(doc)}
	}

	now := s.now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	beforeSummary := mapAt(root, "before_consent", "cookie_category_summary")
	afterSummary := mapAt(root, "after_consent", "cookie_category_summary")
	preConsentFired := PreConsentCookiesFired(beforeSummary, afterSummary)

	cookies := parseCookies(listAt(root, "before_consent", "cookies"), s.log)
	cookies = append(cookies, parseCookies(listAt(root, "after_consent", "cookies"), s.log)...)
	requests := parseRequests(listAt(root, "network_requests"))
	breaches := breachCount(root)

	subscores := map[Dimension]float64{
		DimensionConsent:  BannerQuality(bannerSignals(root), preConsentFired, s.profile.ManipulativePenalty),
		DimensionCookies:  CookieClassificationScore(beforeSummary, afterSummary, s.profile.Classification),
		DimensionTracking: TrackingScore(requests, s.profile.CountTrackingSuspects),
		DimensionBreach:   BreachScore(breaches, s.profile.BreachPenalty),
		DimensionExpiry:   ExpiryScore(cookies, now),
	}
	if s.profile.Enabled(DimensionTransparency) {
		subscores[DimensionTransparency] = TransparencyScore(contactEmail(root))
	}
	if s.profile.Enabled(DimensionSecurity) {
		subscores[DimensionSecurity] = SecurityScore(requests)
	}
	if s.profile.Enabled(DimensionDomain) {
		site := match.NormalizeSite(stringAt(root, "metadata", "url"))
		subscores[DimensionDomain] = DomainScore(cookies, site.Host)
	}

	composite := s.combine(subscores)
	expiryReport, longLived := LongLivedReport(cookies, now)

	params := Parameters{
		BannerQualityScore:     round2(subscores[DimensionConsent]),
		PreConsentCookiesFired: preConsentFired,
		CookieScore:            subscores[DimensionCookies],
		TrackingScore:          round2(subscores[DimensionTracking]),
		BreachScore:            round2(subscores[DimensionBreach]),
		BreachCount:            breaches,
		ExpiryScore:            subscores[DimensionExpiry],
		LongLivedCookieCount:   longLived,
		CookieExpiryReport:     expiryReport,
		Weights:                copyWeights(s.profile.Weights),
	}
	if v, ok := subscores[DimensionTransparency]; ok {
		params.TransparencyScore = &v
	}
	if v, ok := subscores[DimensionSecurity]; ok {
		params.SecurityScore = &v
	}
	if v, ok := subscores[DimensionDomain]; ok {
		params.DomainScore = &v
	}

	metadata := copyMetadata(mapAt(root, "metadata"))
	metadata["compliance_score"] = composite
	metadata["expiry_score"] = params.ExpiryScore
	metadata["profile"] = s.profile.Name
	if params.DomainScore != nil {
		metadata["domain_score"] = *params.DomainScore
	}

	fields := logrus.Fields{
		"profile":                   s.profile.Name,
		"compliance_score":          composite,
		"pre_consent_cookies_fired": preConsentFired,
		"long_lived_cookies":        longLived,
	}
	for dim, v := range subscores {
		fields[string(dim)+"_score"] = v
	}
	s.log.WithFields(fields).Debug("computed compliance score")

	return Report{
		ComplianceScore: composite,
		Profile:         s.profile.Name,
		Metadata:        metadata,
		Parameters:      params,
	}, nil
}

// combine applies the profile weights in canonical order using decimal arithmetic,
// clamping every sub-score first, and returns the 0-100 composite rounded to 2 places.
func (s *Scorer) combine(subscores map[Dimension]float64) float64 {
	total := decimal.Zero
	for _, dim := range s.profile.Dimensions() {
		score := decimal.NewFromFloat(clamp01(subscores[dim]))
		weight := decimal.NewFromFloat(s.profile.Weights[dim])
		total = total.Add(score.Mul(weight))
	}
	composite := total.Mul(decimal.NewFromInt(100)).Round(2)
	if composite.LessThan(decimal.Zero) {
		composite = decimal.Zero
	}
	if composite.GreaterThan(decimal.NewFromInt(100)) {
		composite = decimal.NewFromInt(100)
	}
	return composite.InexactFloat64()
}

func copyMetadata(src map[string]any) map[string]any {
	out := make(map[string]any, len(src)+4)
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyWeights(src map[Dimension]float64) map[Dimension]float64 {
	out := make(map[Dimension]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
