// Package character defines the character profiles consumed by the
// conversation engine. Profiles are owned by the surrounding application;
// the engine reads them and never mutates them.
package character

// Default participation tuning applied when a profile leaves the values unset.
const (
	DefaultInterestThreshold  = 0.5
	DefaultParticipationLevel = 0.5
)

// Profile describes one simulated character: its identity, free-text persona
// instructions, participation tuning, and an optional per-character model
// configuration.
//
// InterestThreshold is the minimum interest score at which the character
// joins a conversation; ParticipationLevel scales how eagerly it engages
// when providers are degraded. Both are always kept in [0,1] — Normalize
// enforces the invariant at load time.
type Profile struct {
	ID                 string       `yaml:"id" json:"id"`
	Name               string       `yaml:"name" json:"name"`
	Persona            string       `yaml:"persona" json:"persona"`
	ParticipationLevel float64      `yaml:"participation_level" json:"participation_level"`
	InterestThreshold  float64      `yaml:"interest_threshold" json:"interest_threshold"`
	Model              *ModelConfig `yaml:"model,omitempty" json:"model,omitempty"`
}

// Normalize returns a copy of the profile with participation values clamped
// to [0,1] and zero values replaced by the documented defaults. Called once
// when profiles are loaded so the engine never re-checks the invariant.
func (p Profile) Normalize() Profile {
	if p.InterestThreshold == 0 {
		p.InterestThreshold = DefaultInterestThreshold
	}
	if p.ParticipationLevel == 0 {
		p.ParticipationLevel = DefaultParticipationLevel
	}
	p.InterestThreshold = clamp01(p.InterestThreshold)
	p.ParticipationLevel = clamp01(p.ParticipationLevel)
	return p
}

// ModelConfig resolves the profile's model configuration, falling back to
// defaults when no configuration is present.
func (p Profile) ModelConfig() ModelConfig {
	if p.Model == nil {
		return DefaultModelConfig()
	}
	return *p.Model
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
