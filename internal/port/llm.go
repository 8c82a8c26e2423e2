package port

import "context"

// Image is an inline image sent alongside a prompt.
type Image struct {
	Data      []byte
	MediaType string
}

// CompletionRequest is a single-turn request to a language model.
type CompletionRequest struct {
	// Purpose labels the call for logs and metrics, e.g. "extraction".
	Purpose     string
	System      string
	Prompt      string
	Images      []Image
	MaxTokens   int
	Temperature float64
	// JSON asks the provider to constrain output to a JSON object when it
	// supports doing so.
	JSON bool
}

// Usage tracks token consumption of one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// CompletionResponse is the text produced by a language model.
type CompletionResponse struct {
	Text       string
	Model      string
	StopReason string
	// Refused is set when the model declined to answer.
	Refused bool
	Usage   Usage
}

// Completer abstracts a language model provider.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}
