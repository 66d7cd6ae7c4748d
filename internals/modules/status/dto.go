package status

import (
	"time"

	"pulsewatch/internals/modules/alert"
	"pulsewatch/internals/modules/monitor"
	"pulsewatch/internals/modules/result"
)

type StatusView struct {
	Endpoint      monitor.Endpoint `json:"endpoint"`
	LastStatus    string           `json:"last_status"`
	LastCheckedAt *time.Time       `json:"last_checked_at"`
	Latest        *result.Record   `json:"latest"`
	Error         string           `json:"error,omitempty"`
}

type AlertsView struct {
	Incident *alert.Incident `json:"incident"`
	Alerts   []alert.Record  `json:"alerts"`
}
