package script

import (
	"fmt"

	"github.com/mkallaste/podforge/internal/config"
)

// NewGenerator constructs the script generator backed by the configured
// completion provider. Called once at worker startup.
func NewGenerator(cfg config.ScriptConfig) (Generator, error) {
	switch cfg.Provider {
	case "openai":
		return NewLLMGenerator(NewOpenAIProvider(cfg.OpenAIKey, cfg.Model)), nil
	case "anthropic":
		return NewLLMGenerator(NewAnthropicProvider(cfg.AnthropicKey, cfg.Model)), nil
	default:
		return nil, fmt.Errorf("unknown script provider %q: must be openai or anthropic", cfg.Provider)
	}
}
