package monitor

import (
	"testing"
	"time"

	"pulsewatch/internals/modules/user"

	"github.com/stretchr/testify/assert"
)

func TestEffectiveInterval(t *testing.T) {
	assert.Equal(t, 60, EffectiveInterval(30, user.TierFree))
	assert.Equal(t, 60, EffectiveInterval(1, user.TierFree))
	assert.Equal(t, 30, EffectiveInterval(30, user.TierSubscriber))
	assert.Equal(t, 300, EffectiveInterval(300, user.TierFree))
	assert.Equal(t, 60, EffectiveInterval(0, user.TierSubscriber))
}

func TestIntervalAllowed(t *testing.T) {
	assert.True(t, IntervalAllowed(60, user.TierFree))
	assert.False(t, IntervalAllowed(10, user.TierFree))
	assert.True(t, IntervalAllowed(10, user.TierSubscriber))
	assert.False(t, IntervalAllowed(7, user.TierSubscriber), "only the listed premium intervals")
	assert.False(t, IntervalAllowed(-5, user.TierSubscriber))
}

func TestEndpointDue(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	e := Endpoint{IntervalSec: 30}
	assert.True(t, e.Due(now, user.TierFree), "never checked")

	last := now.Add(-45 * time.Second)
	e.LastCheckedAt = &last
	assert.True(t, e.Due(now, user.TierSubscriber))
	assert.False(t, e.Due(now, user.TierFree), "clamped to 60s after downgrade")

	last = now.Add(-60 * time.Second)
	assert.True(t, e.Due(now, user.TierFree), "boundary is inclusive")
}
