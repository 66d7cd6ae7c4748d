package user

import "github.com/google/uuid"

type Tier string

const (
	TierFree       Tier = "free"
	TierSubscriber Tier = "subscriber"
)

// FreeMaxMonitors caps how many endpoints a free owner may register.
const FreeMaxMonitors = 100

// Owner is the account an endpoint belongs to. Only the subscription tier
// and quota matter here; account management lives elsewhere.
type Owner struct {
	ID            uuid.UUID
	Tier          Tier
	MonitorsCount int
}

func (o Owner) IsSubscriber() bool {
	return o.Tier == TierSubscriber
}

// ParseTier maps unknown or empty plans to the free tier.
func ParseTier(s string) Tier {
	if Tier(s) == TierSubscriber {
		return TierSubscriber
	}
	return TierFree
}
