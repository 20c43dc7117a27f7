package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"

	"github.com/rshsreehari/coderev-platform/internal/mlog"
	"github.com/rshsreehari/coderev-platform/internal/mmodel"
)

// AIProvider is the remote collaborator the AI detector calls. Exactly one
// request per analysis; request/response shape is provider-specific and
// out of scope, so this is deliberately narrow.
type AIProvider interface {
	Review(ctx context.Context, fileName string, content []byte) (json.RawMessage, error)
}

type aiResponseEnvelope struct {
	Suggestions []mmodel.AISuggestion `json:"suggestions"`
}

// AIDetector wraps an AIProvider with the §4.5.3 stage-7 policy: bounded
// retry for transient failures, then a circuit breaker keyed per provider
// so a sustained outage short-circuits straight to an empty suggestion
// list without paying the request timeout on every subsequent analysis.
type AIDetector struct {
	provider AIProvider
	breaker  *gobreaker.CircuitBreaker
	logger   mlog.Logger
	timeout  time.Duration
}

// NewAIDetector builds a detector around provider, named providerName for
// the breaker's identity (so distinct providers trip independently).
func NewAIDetector(provider AIProvider, providerName string, timeout time.Duration, logger mlog.Logger) *AIDetector {
	settings := gobreaker.Settings{
		Name:    "ai-provider:" + providerName,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}

	return &AIDetector{
		provider: provider,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
		timeout:  timeout,
	}
}

// Review never returns an error: any failure (timeout, transport, schema,
// open breaker) degrades to an empty suggestion list per §4.5.3/I4.
func (d *AIDetector) Review(ctx context.Context, fileName string, content []byte) []mmodel.AISuggestion {
	if d == nil || d.provider == nil {
		return nil
	}

	timeout := d.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	raw, err := d.breaker.Execute(func() (any, error) {
		return d.callWithRetry(ctx, fileName, content)
	})
	if err != nil {
		d.logger.Infof("ai detector degraded to no suggestions: %v", err)
		return nil
	}

	payload, ok := raw.(json.RawMessage)
	if !ok {
		return nil
	}

	var envelope aiResponseEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		d.logger.Infof("ai detector received malformed response: %v", err)
		return nil
	}

	valid := make([]mmodel.AISuggestion, 0, len(envelope.Suggestions))

	for _, s := range envelope.Suggestions {
		if err := s.Validate(); err != nil {
			d.logger.Infof("ai detector dropped invalid suggestion: %v", err)
			continue
		}

		valid = append(valid, s)
	}

	return valid
}

// callWithRetry covers single transient failures before the breaker
// observes them, per §4.5.3: bounded backoff attempts precede the breaker.
func (d *AIDetector) callWithRetry(ctx context.Context, fileName string, content []byte) (json.RawMessage, error) {
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	policy = backoff.WithContext(policy, ctx)

	var result json.RawMessage

	err := backoff.Retry(func() error {
		raw, err := d.provider.Review(ctx, fileName, content)
		if err != nil {
			return err
		}

		result = raw

		return nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("analyzer: ai provider call failed: %w", err)
	}

	return result, nil
}

// ShouldRunAI implements the §4.5.3/§8 min/max line gating for the AI
// detector; both bounds are inclusive.
func ShouldRunAI(enabled bool, lineCount, minLines, maxLines int) bool {
	if !enabled {
		return false
	}

	return lineCount >= minLines && lineCount <= maxLines
}
