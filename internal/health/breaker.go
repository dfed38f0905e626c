package health

import (
	"time"

	"github.com/verdantiq/ai-router/internal/types"
)

// breakerAllowsProbe reports whether the circuit breaker permits contacting
// the provider right now, transitioning open -> half-open when the cooldown
// has elapsed. Mutates cb in place; callers hold the monitor lock.
func breakerAllowsProbe(cb *types.CircuitBreakerInfo, now time.Time) bool {
	switch cb.State {
	case types.CircuitOpen:
		if now.After(cb.NextCheck) {
			// Cooldown elapsed, allow one trial probe
			cb.State = types.CircuitHalfOpen
			return true
		}
		return false
	default:
		return true
	}
}

// breakerRecordFailure folds one failure into the breaker. The failure count
// is incremented before the state is evaluated.
func breakerRecordFailure(cb *types.CircuitBreakerInfo, now time.Time, threshold int, cooldown time.Duration) {
	cb.Failures++
	cb.LastFailure = now

	switch cb.State {
	case types.CircuitClosed:
		if cb.Failures >= threshold {
			cb.State = types.CircuitOpen
			cb.NextCheck = now.Add(cooldown)
		}
	case types.CircuitHalfOpen:
		// Trial probe failed, reopen for another cooldown
		cb.State = types.CircuitOpen
		cb.NextCheck = now.Add(cooldown)
	}
}

// breakerRecordSuccess resets the breaker to closed. A single success while
// half-open (or open) clears the failure count.
func breakerRecordSuccess(cb *types.CircuitBreakerInfo) {
	cb.State = types.CircuitClosed
	cb.Failures = 0
	cb.NextCheck = time.Time{}
}
