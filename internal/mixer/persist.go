package mixer

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/protocol"
)

// ledgerFile is the on-disk form of a Ledger. Roots and snapshots are
// recomputed on load.
type ledgerFile struct {
	Depth       int                               `json:"depth"`
	RootHistory int                               `json:"root_history"`
	Leaves      []field.Word                      `json:"leaves"`
	Roots       []field.Word                      `json:"roots"`
	Nullifiers  map[field.Word]uint64             `json:"nullifiers"`
	Events      []protocol.MixEvent               `json:"events"`
	Sizes       []uint64                          `json:"sizes"`
	Balances    map[protocol.Account]*uint256.Int `json:"balances"`
	Pool        *uint256.Int                      `json:"pool"`
}

// SaveToFile writes the ledger to path as JSON, overwriting it.
func (m *Ledger) SaveToFile(path string) error {
	m.mu.RLock()
	lf := ledgerFile{
		Depth:       m.tree.Depth(),
		RootHistory: m.rootHistory,
		Roots:       m.roots,
		Nullifiers:  m.nullifiers,
		Events:      m.events,
		Sizes:       m.sizes,
		Balances:    m.balances,
		Pool:        m.pool,
	}
	for _, l := range m.tree.Leaves() {
		lf.Leaves = append(lf.Leaves, field.WordOf(l))
	}
	raw, err := json.MarshalIndent(&lf, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

// LoadFromFile restores a ledger written by SaveToFile. The verifier and
// options are supplied again since they are not persisted.
func LoadFromFile(path string, verifier protocol.Verifier, opts ...Option) (*Ledger, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var lf ledgerFile
	if err := json.Unmarshal(raw, &lf); err != nil {
		return nil, fmt.Errorf("mixer: decode %s: %w", path, err)
	}

	opts = append([]Option{WithRootHistory(lf.RootHistory)}, opts...)
	m, err := New(lf.Depth, verifier, opts...)
	if err != nil {
		return nil, err
	}
	leaves := make([]fr.Element, len(lf.Leaves))
	for i, w := range lf.Leaves {
		if leaves[i], err = w.Element(); err != nil {
			return nil, fmt.Errorf("mixer: leaf %d: %w", i, err)
		}
	}
	if _, err := m.tree.AppendBatch(leaves...); err != nil {
		return nil, err
	}
	if len(lf.Sizes) != len(lf.Events)+1 || lf.Sizes[len(lf.Sizes)-1] != m.tree.Size() {
		return nil, fmt.Errorf("mixer: %s is inconsistent: %d events, %d sizes, %d leaves",
			path, len(lf.Events), len(lf.Sizes), m.tree.Size())
	}
	if len(lf.Roots) == 0 || lf.Roots[len(lf.Roots)-1] != field.WordOf(m.tree.Root()) {
		return nil, fmt.Errorf("mixer: %s: stored root does not match leaves", path)
	}

	m.roots = nil
	m.knownRoots = make(map[field.Word]int)
	for _, r := range lf.Roots {
		m.pushRoot(r)
	}
	m.events = lf.Events
	m.sizes = lf.Sizes
	if lf.Nullifiers != nil {
		m.nullifiers = lf.Nullifiers
	}
	if lf.Balances != nil {
		m.balances = lf.Balances
	}
	if lf.Pool != nil {
		m.pool = lf.Pool
	}
	return m, nil
}
