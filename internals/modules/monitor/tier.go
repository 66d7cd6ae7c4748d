package monitor

import (
	"slices"

	"pulsewatch/internals/modules/user"
)

// FreeMinIntervalSec is the shortest interval available without a subscription.
const FreeMinIntervalSec = 60

// PremiumIntervalsSec are the sub-minute intervals reserved for subscribers.
var PremiumIntervalsSec = []int{30, 10, 5, 1}

func IsPremiumInterval(sec int) bool {
	return sec < FreeMinIntervalSec || slices.Contains(PremiumIntervalsSec, sec)
}

// IntervalAllowed is the management-boundary check for a new interval.
func IntervalAllowed(sec int, tier user.Tier) bool {
	if sec <= 0 {
		return false
	}
	if !IsPremiumInterval(sec) {
		return true
	}
	return tier == user.TierSubscriber && slices.Contains(PremiumIntervalsSec, sec)
}

// EffectiveInterval clamps stale premium configuration after a downgrade.
func EffectiveInterval(sec int, tier user.Tier) int {
	if sec <= 0 {
		return FreeMinIntervalSec
	}
	if IsPremiumInterval(sec) && tier != user.TierSubscriber {
		return FreeMinIntervalSec
	}
	return sec
}
