package llm

import (
	"github.com/rotisserie/eris"

	"finreview/internal/config"
	"finreview/internal/port"
)

// BuildChain creates the configured providers in priority order, each paced
// and retried, behind a FallbackCompleter. It returns the individual governed
// providers as well so dual extraction can address them separately.
func BuildChain(cfg *config.LLMConfig) (port.Completer, []port.Completer, error) {
	configured := cfg.Configured()
	if len(configured) == 0 {
		return nil, nil, eris.New("llm: no provider configured")
	}

	completers := make([]port.Completer, 0, len(configured))
	names := make([]string, 0, len(configured))
	for _, pc := range configured {
		c, err := NewCompleter(pc)
		if err != nil {
			return nil, nil, err
		}
		completers = append(completers, NewGovernedCompleter(c, cfg.RequestsPerSecond, cfg.Burst, pc.MaxRetries+1))
		names = append(names, pc.Provider)
	}

	if len(completers) == 1 {
		return completers[0], completers, nil
	}
	return NewFallbackCompleter(completers, names), completers, nil
}
