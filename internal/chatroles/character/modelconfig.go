package character

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Model-configuration defaults. The local provider is the default so a
// character with no configuration never requires credentials.
const (
	DefaultProvider    = "ollama"
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 500
)

// ModelConfig selects the language-model backend for one character.
// It is parsed and validated once when the profile is loaded — the engine
// works with the typed value and never re-parses raw JSON per call.
type ModelConfig struct {
	// Provider is the adapter name: "openai", "zhipu", "moonshot" or "ollama".
	Provider string `yaml:"provider" json:"provider"`

	// Model overrides the provider's default model name. For the ollama
	// provider an empty model triggers random selection from the locally
	// discovered model list.
	Model string `yaml:"model,omitempty" json:"model,omitempty"`

	// Temperature is the sampling temperature passed to the provider.
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// MaxTokens bounds the reply length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"maxTokens,omitempty"`
}

// DefaultModelConfig returns the configuration used when a character has no
// model configuration, or when its stored blob fails to parse.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:    DefaultProvider,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
}

// modelConfigSchema constrains stored model-configuration blobs. Compiled
// once at package init; validation failures downgrade to defaults rather
// than surfacing to the caller.
var modelConfigSchema = jsonschema.MustCompileString("model_config.json", `{
	"type": "object",
	"properties": {
		"provider":    {"type": "string", "enum": ["openai", "zhipu", "moonshot", "ollama", "demo"]},
		"model":       {"type": "string"},
		"temperature": {"type": "number", "minimum": 0, "maximum": 2},
		"maxTokens":   {"type": "integer", "minimum": 1, "maximum": 8192}
	},
	"required": ["provider"],
	"additionalProperties": false
}`)

// Validated re-checks an already-decoded configuration against the schema
// and fills unset fields with defaults. YAML decoding accepts any strings
// and numbers, so roster loading routes every model block through here;
// a configuration that fails the schema degrades to the defaults.
func (c ModelConfig) Validated() ModelConfig {
	blob, err := json.Marshal(c)
	if err != nil {
		return DefaultModelConfig()
	}
	return ParseModelConfig(blob)
}

// ParseModelConfig decodes and validates a stored model-configuration blob.
// Any failure — malformed JSON, schema violation — returns the defaults:
// a broken configuration must degrade a character to the local provider,
// never break it.
func ParseModelConfig(blob []byte) ModelConfig {
	if len(bytes.TrimSpace(blob)) == 0 {
		return DefaultModelConfig()
	}

	var generic any
	if err := json.Unmarshal(blob, &generic); err != nil {
		return DefaultModelConfig()
	}
	if err := modelConfigSchema.Validate(generic); err != nil {
		return DefaultModelConfig()
	}

	cfg := DefaultModelConfig()
	if err := json.Unmarshal(blob, &cfg); err != nil {
		return DefaultModelConfig()
	}
	if cfg.Provider == "" {
		cfg.Provider = DefaultProvider
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return cfg
}
