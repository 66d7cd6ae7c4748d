package monitor

import (
	"time"

	"pulsewatch/internals/modules/probe"
	"pulsewatch/internals/modules/user"

	"github.com/google/uuid"
)

type Endpoint struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	URL           string     `json:"url"`
	Category      string     `json:"category,omitempty"`
	HeaderName    string     `json:"-"`
	HeaderValue   string     `json:"-"`
	RequiredText  string     `json:"required_text,omitempty"`
	IntervalSec   int        `json:"interval_sec"`
	Active        bool       `json:"active"`
	LastCheckedAt *time.Time `json:"last_checked_at"`
	LastStatus    string     `json:"last_status"`
}

func (e Endpoint) Target() probe.Target {
	return probe.Target{
		URL:          e.URL,
		HeaderName:   e.HeaderName,
		HeaderValue:  e.HeaderValue,
		RequiredText: e.RequiredText,
	}
}

// Due reports whether the endpoint should be probed at now given its
// owner's current tier.
func (e Endpoint) Due(now time.Time, tier user.Tier) bool {
	if e.LastCheckedAt == nil {
		return true
	}
	interval := time.Duration(EffectiveInterval(e.IntervalSec, tier)) * time.Second
	return !now.Before(e.LastCheckedAt.Add(interval))
}

type CreateEndpointCmd struct {
	OwnerID      uuid.UUID `validate:"required"`
	URL          string    `validate:"required,http_url"`
	Category     string    `validate:"max=64"`
	HeaderName   string    `validate:"required_with=HeaderValue,max=128"`
	HeaderValue  string    `validate:"max=1024"`
	RequiredText string    `validate:"max=256"`
	IntervalSec  int       `validate:"required,min=1,max=86400"`
}
