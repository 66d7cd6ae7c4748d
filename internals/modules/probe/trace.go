package probe

import (
	"crypto/tls"
	"net/http/httptrace"
	"sync"
	"time"
)

// timeline records the first occurrence of each connection milestone.
// Redirects reuse the same timeline, so only the first hop's connection
// phases are kept while pre-transfer tracks the last written request.
type timeline struct {
	mu          sync.Mutex
	start       time.Time
	dnsDone     time.Time
	connectDone time.Time
	tlsDone     time.Time
	wrote       time.Time
	tlsState    *tls.ConnectionState
}

func newTimeline(start time.Time) *timeline {
	return &timeline{start: start}
}

func (tl *timeline) setOnce(dst *time.Time) {
	tl.mu.Lock()
	if dst.IsZero() {
		*dst = time.Now()
	}
	tl.mu.Unlock()
}

func (tl *timeline) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSDone: func(httptrace.DNSDoneInfo) {
			tl.setOnce(&tl.dnsDone)
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				tl.setOnce(&tl.connectDone)
			}
		},
		TLSHandshakeDone: func(state tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			tl.setOnce(&tl.tlsDone)
			tl.mu.Lock()
			if tl.tlsState == nil {
				st := state
				tl.tlsState = &st
			}
			tl.mu.Unlock()
		},
		WroteRequest: func(info httptrace.WroteRequestInfo) {
			if info.Err != nil {
				return
			}
			tl.mu.Lock()
			tl.wrote = time.Now()
			tl.mu.Unlock()
		},
	}
}

func (tl *timeline) offset(t time.Time) float64 {
	return float64(t.Sub(tl.start)) / float64(time.Millisecond)
}

func nonNegative(v float64) *float64 {
	if v < 0 {
		v = 0
	}
	return &v
}

// phases converts the milestones into durations. Milestones that never fired
// collapse onto the previous one, mirroring cumulative curl-style timers.
func (tl *timeline) phases(end time.Time, https, completed bool) Phases {
	tl.mu.Lock()
	defer tl.mu.Unlock()

	var p Phases
	total := tl.offset(end)
	p.TotalMs = nonNegative(total)

	nameLookup := 0.0
	if !tl.dnsDone.IsZero() {
		nameLookup = tl.offset(tl.dnsDone)
	}
	if !tl.dnsDone.IsZero() || completed {
		p.DNSMs = nonNegative(nameLookup)
	}

	connect := nameLookup
	if !tl.connectDone.IsZero() {
		connect = tl.offset(tl.connectDone)
		p.TCPMs = nonNegative(connect - nameLookup)
	} else if completed {
		p.TCPMs = nonNegative(0)
	}

	appConnect := connect
	if https {
		if !tl.tlsDone.IsZero() {
			appConnect = tl.offset(tl.tlsDone)
			p.TLSMs = nonNegative(appConnect - connect)
		} else if completed {
			p.TLSMs = nonNegative(0)
		}
	} else {
		p.TLSMs = nonNegative(0)
	}

	if tl.wrote.IsZero() {
		if completed {
			p.ServerMs = nonNegative(0)
			p.DownloadMs = nonNegative(total - appConnect)
		}
		return p
	}

	preTransfer := tl.offset(tl.wrote)
	p.ServerMs = nonNegative(preTransfer - appConnect)
	if completed {
		p.DownloadMs = nonNegative(total - preTransfer)
	}
	return p
}

func (tl *timeline) connectionState() *tls.ConnectionState {
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.tlsState
}
