package debugger

import (
	"golang.org/x/time/rate"
)

// Default stepping/continue flood guard, grounded on
// internal/core/security.RateLimiter's token-bucket shape. These are
// generous enough that no legitimate single-user interaction (even a
// double-bound hotkey firing twice) is ever rejected, but a runaway
// loop issuing dozens of requests per second is.
const (
	defaultExecRateLimit = rate.Limit(20) // steady-state requests/sec
	defaultExecBurst     = 5
)

// execRateLimiter guards the non-cacheable execution-control commands
// (continue/next/stepIn/stepOut/stepBack) for one client; all of them
// share the one limiter. It is deliberately not applied to pause (see
// PauseCommand), to inspection commands (threads, stackTrace, ...),
// which are already deduplicated by the request cache, or to
// Disconnect/Terminate, which must never be rejected.
type execRateLimiter struct {
	limiter *rate.Limiter
}

func newExecRateLimiter() *execRateLimiter {
	return &execRateLimiter{limiter: rate.NewLimiter(defaultExecRateLimit, defaultExecBurst)}
}

// allow reports whether a new execution-control request may proceed
// right now. It never blocks: a caller that is rejected gets
// ErrRateLimited immediately and may retry rather than queuing, since
// queuing stepping requests would reorder user intent.
func (rl *execRateLimiter) allow() bool {
	return rl.limiter.Allow()
}
