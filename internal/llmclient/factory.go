// internal/llmclient/factory.go
package llmclient

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet-cli/api/schemas"
	"github.com/xkilldash9x/lancet-cli/internal/config"
)

// NewClient builds the tiered router from configuration, creating one provider
// client per tier.
func NewClient(cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	fastClient, err := newProviderClient(cfg.Fast, logger)
	if err != nil {
		return nil, fmt.Errorf("creating fast tier client: %w", err)
	}

	powerfulClient, err := newProviderClient(cfg.Powerful, logger)
	if err != nil {
		return nil, fmt.Errorf("creating powerful tier client: %w", err)
	}

	return NewRouter(logger, fastClient, powerfulClient, cfg.RequestsPerMinute)
}

// newProviderClient creates a single-provider client based on the model config.
func newProviderClient(cfg config.LLMModelConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(cfg, logger)
	case config.ProviderAzureOpenAI:
		return NewAzureOpenAIClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderAzureOpenAI)
	}
}
