package scoring

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Dimension names one weighted component of the compliance score.
type Dimension string

const (
	DimensionConsent      Dimension = "consent"
	DimensionCookies      Dimension = "cookies"
	DimensionTracking     Dimension = "tracking"
	DimensionTransparency Dimension = "transparency"
	DimensionSecurity     Dimension = "security"
	DimensionBreach       Dimension = "breach"
	DimensionExpiry       Dimension = "expiry"
	DimensionDomain       Dimension = "domain"
)

// dimensionOrder fixes the summation order so composites are reproducible.
var dimensionOrder = []Dimension{
	DimensionConsent,
	DimensionCookies,
	DimensionTracking,
	DimensionTransparency,
	DimensionSecurity,
	DimensionBreach,
	DimensionExpiry,
	DimensionDomain,
}

const (
	ProfileMinimal = "minimal"
	ProfileFull    = "full"

	DefaultProfile = ProfileMinimal
)

// ErrUnknownProfile is returned when a profile name is not declared.
var ErrUnknownProfile = errors.New("unknown scoring profile")

//go:embed profiles.yaml
var builtinProfiles []byte

// Profile is a weighting table plus the heuristics that vary between scoring variants.
type Profile struct {
	Name                  string                `yaml:"-"`
	Description           string                `yaml:"description"`
	ManipulativePenalty   float64               `yaml:"manipulative_penalty"`
	BreachPenalty         float64               `yaml:"breach_penalty"`
	Classification        ClassificationRule    `yaml:"classification"`
	CountTrackingSuspects bool                  `yaml:"count_tracking_suspects"`
	Weights               map[Dimension]float64 `yaml:"weights"`
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

var (
	profilesOnce sync.Once
	profiles     map[string]Profile
	profilesErr  error
)

// LoadProfile returns the named built-in profile. An empty name selects DefaultProfile.
func LoadProfile(name string) (Profile, error) {
	profilesOnce.Do(func() {
		profiles, profilesErr = ParseProfiles(builtinProfiles)
	})
	if profilesErr != nil {
		return Profile{}, profilesErr
	}
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		key = DefaultProfile
	}
	p, ok := profiles[key]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q", ErrUnknownProfile, name)
	}
	return p, nil
}

// ProfileNames lists the built-in profile names in sorted order.
func ProfileNames() []string {
	if _, err := LoadProfile(DefaultProfile); err != nil {
		return nil
	}
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseProfiles decodes and validates a YAML profile document.
func ParseProfiles(data []byte) (map[string]Profile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if len(file.Profiles) == 0 {
		return nil, errors.New("parse profiles: no profiles declared")
	}
	out := make(map[string]Profile, len(file.Profiles))
	for name, p := range file.Profiles {
		p.Name = strings.ToLower(strings.TrimSpace(name))
		if p.Classification == "" {
			p.Classification = RuleUncategorizedStable
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		out[p.Name] = p
	}
	return out, nil
}

// Validate checks that the profile only weights known dimensions and that weights sum to 1.
func (p Profile) Validate() error {
	if len(p.Weights) == 0 {
		return errors.New("no weights")
	}
	known := make(map[Dimension]struct{}, len(dimensionOrder))
	for _, d := range dimensionOrder {
		known[d] = struct{}{}
	}
	sum := decimal.Zero
	for dim, w := range p.Weights {
		if _, ok := known[dim]; !ok {
			return fmt.Errorf("unknown dimension %q", string(dim))
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("weight for %s out of range: %v", dim, w)
		}
		sum = sum.Add(decimal.NewFromFloat(w))
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return fmt.Errorf("weights sum to %s, want 1", sum.String())
	}
	if p.ManipulativePenalty < 0 || p.BreachPenalty < 0 {
		return errors.New("penalties must not be negative")
	}
	return p.Classification.validate()
}

// Enabled reports whether the dimension carries weight in this profile.
func (p Profile) Enabled(d Dimension) bool {
	_, ok := p.Weights[d]
	return ok
}

// Dimensions returns the active dimensions in canonical order.
func (p Profile) Dimensions() []Dimension {
	out := make([]Dimension, 0, len(p.Weights))
	for _, d := range dimensionOrder {
		if p.Enabled(d) {
			out = append(out, d)
		}
	}
	return out
}
