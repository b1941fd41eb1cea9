package fetcher

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// hostLimiter paces requests to one feed host. Each successful response
// raises the rate 20% toward twice the configured rate; each 429 halves it,
// never below a quarter of the configured rate.
type hostLimiter struct {
	host string

	mu      sync.Mutex
	limiter *rate.Limiter
	ceiling rate.Limit
	floor   rate.Limit
	current rate.Limit
}

func newHostLimiter(host string, perSecond rate.Limit, burst int) *hostLimiter {
	return &hostLimiter{
		host:    host,
		limiter: rate.NewLimiter(perSecond, burst),
		ceiling: perSecond * 2,
		floor:   perSecond / 4,
		current: perSecond,
	}
}

func (h *hostLimiter) wait(ctx context.Context) error {
	return h.limiter.Wait(ctx)
}

func (h *hostLimiter) speedUp() {
	h.set(h.current * 1.2)
}

func (h *hostLimiter) slowDown() {
	h.set(h.current * 0.5)
	zap.L().With(zap.String("component", "fetcher.limiter")).Warn("feed host throttled, lowering request rate",
		zap.String("host", h.host),
		zap.Float64("rate", float64(h.rate())),
	)
}

func (h *hostLimiter) set(r rate.Limit) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = min(max(r, h.floor), h.ceiling)
	h.limiter.SetLimit(h.current)
}

func (h *hostLimiter) rate() rate.Limit {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current
}
