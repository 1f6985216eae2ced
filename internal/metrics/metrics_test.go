package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecording(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.TxBuilt("deposit")
	m.TxBuilt("deposit")
	m.Submission("rejected")
	m.NotesDiscovered(3)
	m.DecryptMisses(5)
	m.SyncedHeight(12)
	m.ProofTime(20 * time.Millisecond)
	m.LedgerRejected("invalid signature")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.built.WithLabelValues("deposit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.submissions.WithLabelValues("rejected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.notesFound))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.decryptMisses))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.syncedHeight))

	n, err := testutil.GatherAndCount(reg, "zeth_joinsplit_proof_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TxBuilt("transfer")
		m.ProofTime(time.Second)
		m.Submission("accepted")
		m.NotesDiscovered(1)
		m.DecryptMisses(1)
		m.SyncedHeight(1)
		m.LedgerHeight(1)
		m.LedgerRejected("x")
	})
}
