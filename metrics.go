package v2495

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts flash operations of a session.
type Metrics struct {
	PagesWritten     prometheus.Counter
	PagesRead        prometheus.Counter
	SectorsErased    prometheus.Counter
	VerifyMismatches prometheus.Counter
	WaitTimeouts     prometheus.Counter
	WaitPolls        prometheus.Histogram
}

// NewMetrics creates the counters and registers them with r, if r is not nil.
func NewMetrics(r prometheus.Registerer) *Metrics {
	const ns, sub = "v2495", "flash"
	m := &Metrics{
		PagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "pages_written_total",
			Help: "Flash pages programmed.",
		}),
		PagesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "pages_read_total",
			Help: "Flash pages read back.",
		}),
		SectorsErased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "sectors_erased_total",
			Help: "Flash sectors erased.",
		}),
		VerifyMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "verify_mismatches_total",
			Help: "Pages whose read back differed from the image.",
		}),
		WaitTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Subsystem: sub,
			Name: "wait_timeouts_total",
			Help: "Busy waits that ran out of time or polls.",
		}),
		WaitPolls: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Subsystem: sub,
			Name:    "wait_polls",
			Help:    "Status reads per busy wait.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	if r != nil {
		r.MustRegister(m.PagesWritten, m.PagesRead, m.SectorsErased,
			m.VerifyMismatches, m.WaitTimeouts, m.WaitPolls)
	}
	return m
}

func (m *Metrics) pageWritten() {
	if m != nil {
		m.PagesWritten.Inc()
	}
}

func (m *Metrics) pageRead() {
	if m != nil {
		m.PagesRead.Inc()
	}
}

func (m *Metrics) sectorErased() {
	if m != nil {
		m.SectorsErased.Inc()
	}
}

func (m *Metrics) mismatch() {
	if m != nil {
		m.VerifyMismatches.Inc()
	}
}

func (m *Metrics) waited(polls int, timedOut bool) {
	if m == nil {
		return
	}
	m.WaitPolls.Observe(float64(polls))
	if timedOut {
		m.WaitTimeouts.Inc()
	}
}
