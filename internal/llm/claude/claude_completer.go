package claude

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"finreview/internal/config"
	"finreview/internal/llm"
	"finreview/internal/port"
)

const defaultModel = "claude-sonnet-4-20250514"

// Completer implements port.Completer using the Anthropic Messages API.
type Completer struct {
	client sdk.Client
	model  string
}

// NewCompleter creates a Claude-backed Completer from a provider config.
func NewCompleter(cfg *config.ProviderConfig) *Completer {
	return newCompleter(cfg)
}

// NewCompleterWithEndpoint creates a Completer pointing at a custom API endpoint (for testing).
func NewCompleterWithEndpoint(cfg *config.ProviderConfig, endpoint string) *Completer {
	return newCompleter(cfg, option.WithBaseURL(endpoint))
}

func newCompleter(cfg *config.ProviderConfig, extra ...option.RequestOption) *Completer {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		// Retries are handled by llm.GovernedCompleter.
		option.WithMaxRetries(0),
	}
	opts = append(opts, extra...)
	return &Completer{
		client: sdk.NewClient(opts...),
		model:  model,
	}
}

func (c *Completer) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	blocks := make([]sdk.ContentBlockParamUnion, 0, len(req.Images)+1)
	for _, img := range req.Images {
		blocks = append(blocks, sdk.NewImageBlockBase64(img.MediaType, base64.StdEncoding.EncodeToString(img.Data)))
	}
	blocks = append(blocks, sdk.NewTextBlock(req.Prompt))

	params := sdk.MessageNewParams{
		Model:       sdk.Model(c.model),
		MaxTokens:   maxTokens,
		Messages:    []sdk.MessageParam{sdk.NewUserMessage(blocks...)},
		Temperature: sdk.Float(req.Temperature),
	}
	if req.System != "" {
		params.System = []sdk.TextBlockParam{{Text: req.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			if apiErr.StatusCode == http.StatusTooManyRequests {
				retryAfter := 0
				if apiErr.Response != nil {
					retryAfter = llm.ParseRetryAfterHeader(apiErr.Response.Header.Get("Retry-After"))
				}
				return nil, llm.NewRateLimitError("claude", err, retryAfter)
			}
			return nil, &llm.StatusError{Provider: "claude", StatusCode: apiErr.StatusCode, Body: llm.Truncate(err.Error(), 500)}
		}
		return nil, eris.Wrap(err, "claude: create message")
	}

	var text strings.Builder
	for _, b := range msg.Content {
		if b.Type == "text" {
			text.WriteString(b.Text)
		}
	}

	stop := string(msg.StopReason)
	return &port.CompletionResponse{
		Text:       text.String(),
		Model:      string(msg.Model),
		StopReason: stop,
		Refused:    stop == "refusal",
		Usage: port.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}
