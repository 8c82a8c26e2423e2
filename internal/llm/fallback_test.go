package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"finreview/internal/config"
	"finreview/internal/llm"
	"finreview/internal/port"
	"finreview/mocks"
)

var req = port.CompletionRequest{Purpose: "test", Prompt: "hi"}

func TestFallbackCompleter_FirstSucceeds(t *testing.T) {
	c1 := new(mocks.MockCompleter)
	c2 := new(mocks.MockCompleter)
	c1.On("Complete", mock.Anything, req).Return(mocks.TextResponse("one"), nil)

	fc := llm.NewFallbackCompleter([]port.Completer{c1, c2}, []string{"claude", "openai"})
	resp, err := fc.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "one", resp.Text)
	c2.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestFallbackCompleter_FirstFails_SecondSucceeds(t *testing.T) {
	c1 := new(mocks.MockCompleter)
	c2 := new(mocks.MockCompleter)
	c1.On("Complete", mock.Anything, req).Return(nil, errors.New("boom"))
	c2.On("Complete", mock.Anything, req).Return(mocks.TextResponse("two"), nil)

	fc := llm.NewFallbackCompleter([]port.Completer{c1, c2}, []string{"claude", "openai"})
	resp, err := fc.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "two", resp.Text)
}

func TestFallbackCompleter_RateLimitOpensCircuit(t *testing.T) {
	c1 := new(mocks.MockCompleter)
	c2 := new(mocks.MockCompleter)
	c1.On("Complete", mock.Anything, req).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 60)).Once()
	c2.On("Complete", mock.Anything, req).Return(mocks.TextResponse("two"), nil)

	fc := llm.NewFallbackCompleter([]port.Completer{c1, c2}, []string{"claude", "openai"})
	_, err := fc.Complete(context.Background(), req)
	require.NoError(t, err)

	_, err = fc.Complete(context.Background(), req)
	require.NoError(t, err)

	c1.AssertNumberOfCalls(t, "Complete", 1)
	c2.AssertNumberOfCalls(t, "Complete", 2)
}

func TestFallbackCompleter_AllRateLimited(t *testing.T) {
	c1 := new(mocks.MockCompleter)
	c1.On("Complete", mock.Anything, req).Return(nil, llm.NewRateLimitError("claude", errors.New("429"), 10))

	fc := llm.NewFallbackCompleter([]port.Completer{c1}, []string{"claude"})
	_, err := fc.Complete(context.Background(), req)

	var rlErr *llm.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "all", rlErr.Provider)
}

func TestFallbackCompleter_AllFail(t *testing.T) {
	c1 := new(mocks.MockCompleter)
	c1.On("Complete", mock.Anything, req).Return(nil, errors.New("down"))

	fc := llm.NewFallbackCompleter([]port.Completer{c1}, []string{"claude"})
	_, err := fc.Complete(context.Background(), req)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "all providers failed")
}

func TestFactory_RegisterAndCreate(t *testing.T) {
	llm.RegisterProvider("stub", func(cfg *config.ProviderConfig) (port.Completer, error) {
		return new(mocks.MockCompleter), nil
	})

	c, err := llm.NewCompleter(&config.ProviderConfig{Provider: "stub"})
	assert.NoError(t, err)
	assert.NotNil(t, c)
}

func TestFactory_UnknownProvider(t *testing.T) {
	c, err := llm.NewCompleter(&config.ProviderConfig{Provider: "nonexistent"})
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown llm provider")
}

func TestGovernedCompleter_RetriesServerErrors(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, req).Return(nil, &llm.StatusError{Provider: "x", StatusCode: 503}).Once()
	c.On("Complete", mock.Anything, req).Return(mocks.TextResponse("ok"), nil).Once()

	g := llm.NewGovernedCompleter(c, 0, 1, 3)
	resp, err := g.Complete(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	c.AssertNumberOfCalls(t, "Complete", 2)
}

func TestGovernedCompleter_DoesNotRetryClientErrors(t *testing.T) {
	c := new(mocks.MockCompleter)
	c.On("Complete", mock.Anything, req).Return(nil, &llm.StatusError{Provider: "x", StatusCode: 400})

	g := llm.NewGovernedCompleter(c, 100, 1, 3)
	_, err := g.Complete(context.Background(), req)

	require.Error(t, err)
	c.AssertNumberOfCalls(t, "Complete", 1)
}

func TestParseRetryAfterHeader(t *testing.T) {
	assert.Equal(t, 0, llm.ParseRetryAfterHeader(""))
	assert.Equal(t, 0, llm.ParseRetryAfterHeader("soon"))
	assert.Equal(t, 12, llm.ParseRetryAfterHeader("12"))
}
