package limiter

import (
	"context"

	"golang.org/x/time/rate"
)

// Governor caps the crawler's total outbound request rate across all
// hosts, independent of the per-host ConcurrentRateLimiter. It exists
// because per-host politeness alone does not bound how many hosts the
// extractor can hit concurrently; the governor is the single global
// throttle every fetch passes through before the per-host delay is
// resolved.
type Governor struct {
	limiter *rate.Limiter
}

// NewGovernor builds a Governor allowing ratePerSec requests per second,
// with burst concurrent requests admitted immediately.
func NewGovernor(ratePerSec float64, burst int) *Governor {
	return &Governor{limiter: rate.NewLimiter(rate.Limit(ratePerSec), burst)}
}

// Wait blocks until the governor admits one request, or ctx is done.
func (g *Governor) Wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Allow reports whether a request may proceed right now without blocking.
func (g *Governor) Allow() bool {
	return g.limiter.Allow()
}

// SetLimit adjusts the global rate at runtime, used when configuration is
// reloaded between crawl runs.
func (g *Governor) SetLimit(ratePerSec float64) {
	g.limiter.SetLimit(rate.Limit(ratePerSec))
}
