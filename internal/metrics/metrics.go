// Package metrics holds the Prometheus collectors shared by the builder, the
// wallet synchronizer and the reference ledger. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zeth"

type Metrics struct {
	built          *prometheus.CounterVec
	proofSeconds   prometheus.Histogram
	submissions    *prometheus.CounterVec
	notesFound     prometheus.Counter
	decryptMisses  prometheus.Counter
	syncedHeight   prometheus.Gauge
	ledgerHeight   prometheus.Gauge
	ledgerRejected *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		built: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "joinsplit", Name: "built_total",
			Help: "Transactions built, by kind.",
		}, []string{"kind"}),
		proofSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "joinsplit", Name: "proof_seconds",
			Help:    "Time spent waiting for the prover.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "joinsplit", Name: "submissions_total",
			Help: "Submissions, by outcome.",
		}, []string{"outcome"}),
		notesFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "wallet", Name: "notes_discovered_total",
			Help: "Notes decrypted and added to a wallet.",
		}),
		decryptMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "wallet", Name: "decrypt_misses_total",
			Help: "Ciphertexts that did not open under any wallet key.",
		}),
		syncedHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "wallet", Name: "synced_height",
			Help: "Last ledger height scanned by the wallet.",
		}),
		ledgerHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "mixer", Name: "height",
			Help: "Current height of the reference ledger.",
		}),
		ledgerRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "mixer", Name: "rejected_total",
			Help: "Transactions refused by the reference ledger, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.built, m.proofSeconds, m.submissions, m.notesFound,
		m.decryptMisses, m.syncedHeight, m.ledgerHeight, m.ledgerRejected)
	return m
}

func (m *Metrics) TxBuilt(kind string) {
	if m == nil {
		return
	}
	m.built.WithLabelValues(kind).Inc()
}

func (m *Metrics) ProofTime(d time.Duration) {
	if m == nil {
		return
	}
	m.proofSeconds.Observe(d.Seconds())
}

// Submission records an outcome such as "accepted", "rejected" or "timeout".
func (m *Metrics) Submission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotesDiscovered(n int) {
	if m == nil {
		return
	}
	m.notesFound.Add(float64(n))
}

func (m *Metrics) DecryptMisses(n int) {
	if m == nil {
		return
	}
	m.decryptMisses.Add(float64(n))
}

func (m *Metrics) SyncedHeight(h uint64) {
	if m == nil {
		return
	}
	m.syncedHeight.Set(float64(h))
}

func (m *Metrics) LedgerHeight(h uint64) {
	if m == nil {
		return
	}
	m.ledgerHeight.Set(float64(h))
}

func (m *Metrics) LedgerRejected(reason string) {
	if m == nil {
		return
	}
	m.ledgerRejected.WithLabelValues(reason).Inc()
}
