package provider

const (
	defaultZhipuBase  = "https://open.bigmodel.cn/api/paas/v4"
	defaultZhipuModel = "glm-4-flash"
)

// NewZhipu returns the adapter for the Zhipu AI (GLM) open platform.
// Zhipu's v4 API speaks the chat-completions wire format, so only the
// endpoint and model defaults differ from the OpenAI adapter.
func NewZhipu(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultZhipuBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultZhipuModel
	}
	return newChatCompletions("zhipu", cfg)
}
