package risk

import "time"

// DefaultCooldown is the minimum spacing between corrective actions on one account
const DefaultCooldown = 300 * time.Second

// ShouldRebalance reports whether more than cooldown has elapsed since
// lastAction on the wall clock. A zero lastAction (never acted) always passes.
// The gate keeps no state; the caller owns lastAction and must only advance it
// after an action is confirmed.
func ShouldRebalance(lastAction time.Time, cooldown time.Duration) bool {
	return ShouldRebalanceAt(time.Now(), lastAction, cooldown)
}

// ShouldRebalanceAt is ShouldRebalance against an explicit clock reading.
// A zero cooldown passes once any time has elapsed; a negative cooldown is
// invalid and keeps the gate closed.
func ShouldRebalanceAt(now, lastAction time.Time, cooldown time.Duration) bool {
	if cooldown < 0 {
		return false
	}
	if lastAction.IsZero() {
		return true
	}
	return now.Sub(lastAction) > cooldown
}
