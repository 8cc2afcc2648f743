package provider

const (
	defaultMoonshotBase  = "https://api.moonshot.cn/v1"
	defaultMoonshotModel = "moonshot-v1-8k"
)

// NewMoonshot returns the adapter for the Moonshot (Kimi) platform, another
// chat-completions-compatible endpoint.
func NewMoonshot(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultMoonshotBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultMoonshotModel
	}
	return newChatCompletions("moonshot", cfg)
}
