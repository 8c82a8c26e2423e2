package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"finreview/internal/metrics"
	"finreview/internal/port"
	"finreview/internal/resilience"
)

// GovernedCompleter paces, retries and instruments calls to an inner Completer.
type GovernedCompleter struct {
	inner   port.Completer
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewGovernedCompleter wraps inner. A non-positive rps disables pacing.
func NewGovernedCompleter(inner port.Completer, rps float64, burst int, maxAttempts int) *GovernedCompleter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	retry := resilience.DefaultRetryConfig()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	retry.OnRetry = resilience.RetryLogger("llm", "complete")
	return &GovernedCompleter{
		inner:   inner,
		limiter: rate.NewLimiter(limit, burst),
		retry:   retry,
	}
}

func (g *GovernedCompleter) Complete(ctx context.Context, req port.CompletionRequest) (*port.CompletionResponse, error) {
	start := time.Now()
	resp, err := resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*port.CompletionResponse, error) {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "llm: wait for rate limiter")
		}
		return g.inner.Complete(ctx, req)
	})
	metrics.LLMDuration.WithLabelValues(req.Purpose).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.LLMRequests.WithLabelValues(req.Purpose, "error").Inc()
		return nil, err
	}

	result := "ok"
	if resp.Refused {
		result = "refused"
	}
	metrics.LLMRequests.WithLabelValues(req.Purpose, result).Inc()
	metrics.LLMTokens.WithLabelValues(req.Purpose, "input").Add(float64(resp.Usage.InputTokens))
	metrics.LLMTokens.WithLabelValues(req.Purpose, "output").Add(float64(resp.Usage.OutputTokens))
	zap.L().Debug("llm call completed",
		zap.String("purpose", req.Purpose),
		zap.String("model", resp.Model),
		zap.String("stop_reason", resp.StopReason),
		zap.Int64("input_tokens", resp.Usage.InputTokens),
		zap.Int64("output_tokens", resp.Usage.OutputTokens),
		zap.Duration("elapsed", time.Since(start)),
	)
	return resp, nil
}
