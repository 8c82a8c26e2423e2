package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finreview/internal/config"
	"finreview/internal/llm"
	"finreview/internal/llm/providers"
)

func TestRegister(t *testing.T) {
	providers.Register()

	for _, name := range []string{"claude", "gemini", "openai"} {
		c, err := llm.NewCompleter(&config.ProviderConfig{Provider: name, APIKey: "test-key", DefaultModel: "m"})
		require.NoError(t, err, name)
		assert.NotNil(t, c, name)
	}

	_, err := llm.NewCompleter(&config.ProviderConfig{Provider: "unknown"})
	assert.Error(t, err)
}
