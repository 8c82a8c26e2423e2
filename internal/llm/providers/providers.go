// Package providers registers the built-in language model providers.
package providers

import (
	"finreview/internal/config"
	"finreview/internal/llm"
	"finreview/internal/llm/claude"
	"finreview/internal/llm/gemini"
	"finreview/internal/llm/openai"
	"finreview/internal/port"
)

// Register makes claude, gemini and openai available to llm.NewCompleter.
func Register() {
	llm.RegisterProvider("claude", func(cfg *config.ProviderConfig) (port.Completer, error) {
		return claude.NewCompleter(cfg), nil
	})
	llm.RegisterProvider("gemini", func(cfg *config.ProviderConfig) (port.Completer, error) {
		return gemini.NewCompleter(cfg), nil
	})
	llm.RegisterProvider("openai", func(cfg *config.ProviderConfig) (port.Completer, error) {
		return openai.NewCompleter(cfg), nil
	})
}
