package translator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limited wraps a capability with requests-per-minute and tokens-per-minute
// limits. A zero limit is unlimited.
type Limited struct {
	Capability
	requests *rate.Limiter
	tokens   *rate.Limiter
}

// WithRateLimit returns c unchanged when both limits are zero.
func WithRateLimit(c Capability, rpm, tpm int) Capability {
	if rpm <= 0 && tpm <= 0 {
		return c
	}
	l := &Limited{Capability: c}
	if rpm > 0 {
		l.requests = rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1)
	}
	if tpm > 0 {
		l.tokens = rate.NewLimiter(rate.Limit(float64(tpm)/60), tpm)
	}
	return l
}

func (l *Limited) Submit(ctx context.Context, req Request) (*Response, error) {
	if l.requests != nil {
		if err := l.requests.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limited: %w", err)
		}
	}
	if l.tokens != nil {
		n := min(EstimateRequest(req), l.tokens.Burst())
		if err := l.tokens.WaitN(ctx, n); err != nil {
			return nil, fmt.Errorf("rate limited: %w", err)
		}
	}
	return l.Capability.Submit(ctx, req)
}

func (l *Limited) IsAvailable(ctx context.Context) error {
	return Check(ctx, l.Capability)
}
