package ai

import (
	"fmt"

	"github.com/rowforge/rowforge/internal/ai/anthropic"
	"github.com/rowforge/rowforge/internal/ai/ollama"
	"github.com/rowforge/rowforge/internal/ai/openai"
	"github.com/rowforge/rowforge/internal/config"
	"github.com/rowforge/rowforge/pkg/models"
)

// NewInterpreter constructs the appropriate interpreter based on config.
// Called once at server startup.
func NewInterpreter(cfg config.AIConfig) (models.Interpreter, error) {
	switch cfg.Provider {
	case "ollama":
		return ollama.NewProvider(cfg.Ollama), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI), nil
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of ollama, openai, anthropic", cfg.Provider)
	}
}
