package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/fastygo/svckit/api/transport"
	"github.com/fastygo/svckit/pkg/bizcode"
)

// RateLimitConfig configures the RateLimit middleware.
type RateLimitConfig struct {
	Rate    float64 // requests per second
	Burst   int
	KeyFunc func(ctx *fasthttp.RequestCtx) string // default: remote IP
	MaxIdle time.Duration                         // drop limiters idle longer than this
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimit applies a token bucket per key. A non-positive rate disables it.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Rate <= 0 {
		return func(next fasthttp.RequestHandler) fasthttp.RequestHandler { return next }
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(ctx *fasthttp.RequestCtx) string { return ctx.RemoteIP().String() }
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = 5 * time.Minute
	}

	var (
		mu          sync.Mutex
		limiters    = make(map[string]*limiterEntry)
		lastCleanup time.Time
	)
	retryAfter := strconv.Itoa(max(1, int(1/cfg.Rate)))

	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			key := cfg.KeyFunc(ctx)

			mu.Lock()
			now := time.Now()
			if now.Sub(lastCleanup) >= time.Minute {
				for k, e := range limiters {
					if now.Sub(e.lastSeen) > cfg.MaxIdle {
						delete(limiters, k)
					}
				}
				lastCleanup = now
			}
			entry, ok := limiters[key]
			if !ok {
				entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(cfg.Rate), cfg.Burst)}
				limiters[key] = entry
			}
			entry.lastSeen = now
			mu.Unlock()

			if !entry.limiter.Allow() {
				ctx.Response.Header.Set(fasthttp.HeaderRetryAfter, retryAfter)
				writeEnvelope(ctx, transport.NewWarn(bizcode.Message(bizcode.ReqRateLimited)).WithCode(bizcode.ReqRateLimited))
				return
			}
			next(ctx)
		}
	}
}
