// Package config loads the application configuration from an optional YAML
// file with environment-variable overrides.
//
// Precedence, lowest to highest: built-in defaults, YAML file, environment.
// Parsing failures in overrides fall back to the previous layer rather than
// erroring, because every knob here has a safe built-in value; only a YAML
// file that exists but cannot be read or decoded is a hard error.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/common/environment"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/engine"
	"github.com/ptreezh/chatWithYouDefinedRoles-sub000/internal/chatroles/provider"
)

// Built-in defaults.
const (
	DefaultDatabasePath   = "./chatroles.db"
	DefaultCharactersPath = "./characters.yaml"
)

// Duration is a time.Duration that unmarshals from YAML strings in Go
// duration syntax ("30s", "2m") or from plain integers meaning seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("config: invalid duration: %w", err)
	}
	*d = Duration(time.Duration(n) * time.Second)
	return nil
}

// ProviderSettings configures one OpenAI-compatible cloud provider.
type ProviderSettings struct {
	APIKey  string   `yaml:"api_key"`
	BaseURL string   `yaml:"base_url"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// OllamaSettings configures the local generative provider.
type OllamaSettings struct {
	BaseURL string   `yaml:"base_url"`
	Model   string   `yaml:"model"`
	Timeout Duration `yaml:"timeout"`
}

// Config holds the full application configuration.
type Config struct {
	// DatabasePath is the SQLite database file holding the memory banks.
	DatabasePath string `yaml:"database_path"`

	// CharactersPath is the YAML roster of character profiles.
	CharactersPath string `yaml:"characters_path"`

	// Cloud providers, in fallback order: OpenAI, Zhipu, Moonshot.
	OpenAI   ProviderSettings `yaml:"openai"`
	Zhipu    ProviderSettings `yaml:"zhipu"`
	Moonshot ProviderSettings `yaml:"moonshot"`

	// Ollama is the local provider tried after the cloud providers.
	Ollama OllamaSettings `yaml:"ollama"`

	// WindowSize and SimilarityThreshold tune the repetition guard.
	WindowSize          int     `yaml:"window_size"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// Demo forces the deterministic offline mode regardless of which
	// credentials are present.
	Demo bool `yaml:"demo"`

	// Seed fixes all random sources for reproducible runs. Zero means
	// time-seeded.
	Seed int64 `yaml:"seed"`
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty and the file exists), and environment overrides, in that
// order. A missing file at an explicitly empty path is not an error; a file
// that exists but cannot be decoded is.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Optional file; defaults plus environment apply.
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvironment()
	cfg.normalize()
	return cfg, nil
}

// defaults returns the built-in configuration.
func defaults() *Config {
	return &Config{
		DatabasePath:        DefaultDatabasePath,
		CharactersPath:      DefaultCharactersPath,
		WindowSize:          engine.DefaultWindowSize,
		SimilarityThreshold: engine.DefaultSimilarityThreshold,
	}
}

// applyEnvironment overlays environment variables on top of the current
// values. Every variable is optional.
func (c *Config) applyEnvironment() {
	c.DatabasePath = environment.StringOr("CHATROLES_DB_PATH", c.DatabasePath)
	c.CharactersPath = environment.StringOr("CHATROLES_CHARACTERS", c.CharactersPath)

	c.OpenAI.APIKey = environment.StringOr("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = environment.StringOr("OPENAI_BASE_URL", c.OpenAI.BaseURL)
	c.OpenAI.Model = environment.StringOr("OPENAI_MODEL", c.OpenAI.Model)

	c.Zhipu.APIKey = environment.StringOr("ZHIPU_API_KEY", c.Zhipu.APIKey)
	c.Zhipu.BaseURL = environment.StringOr("ZHIPU_BASE_URL", c.Zhipu.BaseURL)
	c.Zhipu.Model = environment.StringOr("ZHIPU_MODEL", c.Zhipu.Model)

	c.Moonshot.APIKey = environment.StringOr("MOONSHOT_API_KEY", c.Moonshot.APIKey)
	c.Moonshot.BaseURL = environment.StringOr("MOONSHOT_BASE_URL", c.Moonshot.BaseURL)
	c.Moonshot.Model = environment.StringOr("MOONSHOT_MODEL", c.Moonshot.Model)

	c.Ollama.BaseURL = environment.StringOr("OLLAMA_BASE_URL", c.Ollama.BaseURL)
	c.Ollama.Model = environment.StringOr("OLLAMA_MODEL", c.Ollama.Model)
	c.Ollama.Timeout = Duration(environment.DurationOr("OLLAMA_TIMEOUT", time.Duration(c.Ollama.Timeout)))

	c.WindowSize = environment.IntOr("CHATROLES_WINDOW_SIZE", c.WindowSize)
	c.SimilarityThreshold = environment.Float64Or("CHATROLES_SIMILARITY_THRESHOLD", c.SimilarityThreshold)
	c.Demo = environment.BoolOr("CHATROLES_DEMO", c.Demo)
	c.Seed = int64(environment.IntOr("CHATROLES_SEED", int(c.Seed)))
}

// normalize clamps the tunables back into their valid ranges.
func (c *Config) normalize() {
	if c.WindowSize <= 0 {
		c.WindowSize = engine.DefaultWindowSize
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		c.SimilarityThreshold = engine.DefaultSimilarityThreshold
	}
	if c.DatabasePath == "" {
		c.DatabasePath = DefaultDatabasePath
	}
	if c.CharactersPath == "" {
		c.CharactersPath = DefaultCharactersPath
	}
}

// DemoMode reports whether the deployment should run fully offline: either
// the explicit demo flag is set, or the sentinel credential value was
// supplied for any cloud provider.
func (c *Config) DemoMode() bool {
	if c.Demo {
		return true
	}
	for _, key := range []string{c.OpenAI.APIKey, c.Zhipu.APIKey, c.Moonshot.APIKey} {
		if key == provider.DemoKey {
			return true
		}
	}
	return false
}

// Secrets returns the credential values that must be scrubbed from log
// output. Placeholder values are excluded; they are not secrets.
func (c *Config) Secrets() []string {
	var secrets []string
	for _, key := range []string{c.OpenAI.APIKey, c.Zhipu.APIKey, c.Moonshot.APIKey} {
		if !provider.IsPlaceholder(key) {
			secrets = append(secrets, key)
		}
	}
	return secrets
}

// Providers builds the ordered fallback chain from the configured
// credentials. Providers with placeholder credentials are still constructed;
// the chain skips them at call time through their Available method. The
// deterministic offline responder is the implicit terminal element and is
// not part of the returned slice.
func (c *Config) Providers() []provider.Provider {
	return []provider.Provider{
		provider.NewOpenAI(provider.Config{
			APIKey:  c.OpenAI.APIKey,
			BaseURL: c.OpenAI.BaseURL,
			Model:   c.OpenAI.Model,
			Timeout: time.Duration(c.OpenAI.Timeout),
		}),
		provider.NewZhipu(provider.Config{
			APIKey:  c.Zhipu.APIKey,
			BaseURL: c.Zhipu.BaseURL,
			Model:   c.Zhipu.Model,
			Timeout: time.Duration(c.Zhipu.Timeout),
		}),
		provider.NewMoonshot(provider.Config{
			APIKey:  c.Moonshot.APIKey,
			BaseURL: c.Moonshot.BaseURL,
			Model:   c.Moonshot.Model,
			Timeout: time.Duration(c.Moonshot.Timeout),
		}),
		provider.NewOllama(provider.OllamaConfig{
			BaseURL: c.Ollama.BaseURL,
			Model:   c.Ollama.Model,
			Timeout: time.Duration(c.Ollama.Timeout),
		}),
	}
}
