package llm

import (
	"github.com/rotisserie/eris"

	"finreview/internal/config"
	"finreview/internal/port"
)

// ProviderFactory creates a Completer from a provider config.
type ProviderFactory func(cfg *config.ProviderConfig) (port.Completer, error)

// registry of provider factories, populated explicitly via RegisterProvider
// from the composition root.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// NewCompleter creates a Completer from a provider config using the registered factory.
func NewCompleter(cfg *config.ProviderConfig) (port.Completer, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, eris.Errorf("unknown llm provider: %s", cfg.Provider)
	}
	return factory(cfg)
}
