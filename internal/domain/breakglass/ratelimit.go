package breakglass

import (
	"sync"
	"time"
)

// invocationLimit tracks per-user invocation timestamps within a
// rolling one-hour window. Break-glass is for emergencies; a user
// opening overrides in bulk is either a runaway client or abuse.
type invocationLimit struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func newInvocationLimit() *invocationLimit {
	return &invocationLimit{
		entries: make(map[string][]time.Time),
	}
}

// allow reports whether the user is under maxPerHour invocations in the
// trailing hour and, if so, records the current one. The caller
// supplies the clock so tests stay deterministic.
func (rl *invocationLimit) allow(userID string, now time.Time, maxPerHour int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-1 * time.Hour)

	existing := rl.entries[userID]
	pruned := existing[:0]
	for _, ts := range existing {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= maxPerHour {
		rl.entries[userID] = pruned
		return false
	}

	rl.entries[userID] = append(pruned, now)
	return true
}

// cleanup drops entries older than one hour so the map does not grow
// without bound. Called periodically by the sweeper.
func (rl *invocationLimit) cleanup(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-1 * time.Hour)
	for userID, timestamps := range rl.entries {
		pruned := timestamps[:0]
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				pruned = append(pruned, ts)
			}
		}
		if len(pruned) == 0 {
			delete(rl.entries, userID)
		} else {
			rl.entries[userID] = pruned
		}
	}
}
