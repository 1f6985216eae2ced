// Package mixer is an in-process reference ledger for JoinSplit
// transactions. It holds the commitment tree, the spent nullifiers and the
// public balances, and mines one block per accepted transaction.
//
// Every check a production contract would make is made here, in this order:
// encoding, canonical field elements, one-time signature, h_sig binding,
// known root, fresh nullifiers, proof, public funds. A transaction is
// applied completely or not at all.
package mixer

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
	"github.com/HamzaZF/zeth-client/internal/metrics"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/schnorr"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

const (
	DefaultRootHistory   = 64
	defaultSnapshotCache = 32
)

// Ledger implements protocol.Ledger. Height 0 is the empty genesis state;
// block h holds the h-th accepted transaction.
type Ledger struct {
	mu          sync.RWMutex
	tree        *merkle.Tree
	rootHistory int
	roots       []field.Word
	knownRoots  map[field.Word]int
	nullifiers  map[field.Word]uint64
	events      []protocol.MixEvent
	// sizes[h] is the number of leaves after block h.
	sizes    []uint64
	balances map[protocol.Account]*uint256.Int
	pool     *uint256.Int

	verifier  protocol.Verifier
	snapshots *lru.Cache[uint64, *merkle.Tree]
	log       zerolog.Logger
	metrics   *metrics.Metrics
}

var _ protocol.Ledger = (*Ledger)(nil)

type Option func(*Ledger)

func WithLogger(l zerolog.Logger) Option {
	return func(m *Ledger) { m.log = l }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Ledger) { m.metrics = mt }
}

// WithRootHistory sets how many recent roots a proof may be made against.
func WithRootHistory(n int) Option {
	return func(m *Ledger) { m.rootHistory = n }
}

// New creates an empty ledger over a tree of the given depth whose proofs
// are checked by verifier.
func New(depth int, verifier protocol.Verifier, opts ...Option) (*Ledger, error) {
	tree, err := merkle.New(depth)
	if err != nil {
		return nil, err
	}
	cache, err := lru.New[uint64, *merkle.Tree](defaultSnapshotCache)
	if err != nil {
		return nil, err
	}
	m := &Ledger{
		tree:        tree,
		rootHistory: DefaultRootHistory,
		knownRoots:  make(map[field.Word]int),
		nullifiers:  make(map[field.Word]uint64),
		sizes:       []uint64{0},
		balances:    make(map[protocol.Account]*uint256.Int),
		pool:        new(uint256.Int),
		verifier:    verifier,
		snapshots:   cache,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rootHistory < 1 {
		return nil, fmt.Errorf("mixer: root history must be positive, got %d", m.rootHistory)
	}
	m.pushRoot(field.WordOf(tree.Root()))
	return m, nil
}

func (m *Ledger) pushRoot(root field.Word) {
	m.roots = append(m.roots, root)
	m.knownRoots[root]++
	if len(m.roots) > m.rootHistory {
		old := m.roots[0]
		m.roots = m.roots[1:]
		if m.knownRoots[old]--; m.knownRoots[old] == 0 {
			delete(m.knownRoots, old)
		}
	}
}

// Fund credits a public account with wei.
func (m *Ledger) Fund(account protocol.Account, wei *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balanceOf(account).Add(m.balanceOf(account), wei)
}

func (m *Ledger) balanceOf(account protocol.Account) *uint256.Int {
	b, ok := m.balances[account]
	if !ok {
		b = new(uint256.Int)
		m.balances[account] = b
	}
	return b
}

// Balance returns the public balance of account in wei.
func (m *Ledger) Balance(account protocol.Account) *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[account]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Pool returns the wei held on behalf of all shielded notes.
func (m *Ledger) Pool() *uint256.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(uint256.Int).Set(m.pool)
}

// Depth is the depth of the commitment tree.
func (m *Ledger) Depth() int {
	return m.tree.Depth()
}

func (m *Ledger) CurrentHeight(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.events)), nil
}

func (m *Ledger) FetchMixEvents(ctx context.Context, from, to uint64) ([]protocol.MixEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if from == 0 {
		from = 1
	}
	if head := uint64(len(m.events)); to > head {
		return nil, fmt.Errorf("%w: %d > %d", protocol.ErrBeyondHead, to, head)
	}
	if from > to {
		return nil, nil
	}
	out := make([]protocol.MixEvent, 0, to-from+1)
	out = append(out, m.events[from-1:to]...)
	return out, nil
}

// TreeSnapshot returns a private copy of the tree as of height.
func (m *Ledger) TreeSnapshot(ctx context.Context, height uint64) (*merkle.Tree, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if height >= uint64(len(m.sizes)) {
		return nil, fmt.Errorf("mixer: height %d is in the future (current %d)", height, len(m.sizes)-1)
	}
	if t, ok := m.snapshots.Get(height); ok {
		return t.Clone(), nil
	}
	t, err := m.tree.Snapshot(m.sizes[height])
	if err != nil {
		return nil, err
	}
	m.snapshots.Add(height, t)
	return t.Clone(), nil
}

// NullifierSpent accepts any encoding of the nullifier.
func (m *Ledger) NullifierSpent(ctx context.Context, nf field.Word) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.nullifiers[field.WordOf(nf.Reduce())]
	return ok, nil
}

func (m *Ledger) reject(reason string) error {
	m.metrics.LedgerRejected(reason)
	m.log.Info().Str("reason", reason).Msg("rejected transaction")
	return protocol.Reject(reason)
}

// Submit verifies tx and, if every check passes, applies it as the next
// block. A refusal is a *protocol.RejectionError.
func (m *Ledger) Submit(ctx context.Context, tx *protocol.MixTransaction) (*protocol.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := tx.Validate(); err != nil {
		return nil, m.reject(protocol.ReasonMalformed)
	}
	in := &tx.Inputs
	if err := in.Canonical(); err != nil {
		return nil, m.reject(protocol.ReasonNonCanonical)
	}
	if !schnorr.Verify(tx.VK, tx.SignatureDigest(), tx.Signature) {
		return nil, m.reject(protocol.ReasonInvalidSignature)
	}
	if field.WordOf(zerocash.HSig(in.Nullifiers, tx.VK.Bytes())) != in.HSig {
		return nil, m.reject(protocol.ReasonHSigMismatch)
	}
	if in.Nullifiers[0] == in.Nullifiers[1] {
		return nil, m.reject(protocol.ReasonDuplicateNullifier)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.knownRoots[in.Root]; !ok {
		return nil, m.reject(protocol.ReasonUnknownRoot)
	}
	for _, nf := range in.Nullifiers {
		if _, spent := m.nullifiers[nf]; spent {
			return nil, m.reject(protocol.ReasonNullifierSpent)
		}
	}
	if err := m.verifier.Verify(ctx, tx.Proof, in); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		m.log.Debug().Err(err).Msg("proof verification failed")
		return nil, m.reject(protocol.ReasonInvalidProof)
	}

	vIn := zerocash.UnitsToWei(in.VIn)
	vOut := zerocash.UnitsToWei(in.VOut)
	payer := m.balanceOf(tx.Recipient)
	if payer.Lt(vIn) {
		return nil, m.reject(protocol.ReasonInsufficientFunds)
	}
	if new(uint256.Int).Add(m.pool, vIn).Lt(vOut) {
		return nil, m.reject(protocol.ReasonInsufficientFunds)
	}

	cms := in.Commitments
	start, err := m.tree.AppendBatch(cms[0].Reduce(), cms[1].Reduce())
	if err != nil {
		return nil, m.reject(protocol.ReasonTreeFull)
	}

	// Accepted: nothing below can fail.
	payer.Sub(payer, vIn)
	m.pool.Add(m.pool, vIn)
	m.pool.Sub(m.pool, vOut)
	m.balanceOf(tx.Recipient).Add(m.balanceOf(tx.Recipient), vOut)

	height := uint64(len(m.events)) + 1
	for _, nf := range in.Nullifiers {
		m.nullifiers[nf] = height
	}
	root := field.WordOf(m.tree.Root())
	m.pushRoot(root)
	m.sizes = append(m.sizes, m.tree.Size())

	eph := field.EncodePoint(tx.EphemeralPk)
	ev := protocol.MixEvent{
		Height:      height,
		LeafIndices: [2]uint64{start, start + 1},
		Commitments: cms,
		Ciphertexts: [2][]byte{
			append([]byte(nil), tx.Ciphertexts[0]...),
			append([]byte(nil), tx.Ciphertexts[1]...),
		},
		EphemeralPk: eph[:],
	}
	m.events = append(m.events, ev)
	m.metrics.LedgerHeight(height)

	receipt := &protocol.Receipt{
		TxHash:      tx.Hash(),
		Height:      height,
		LeafIndices: ev.LeafIndices,
		Root:        root,
	}
	m.log.Info().Uint64("height", height).Str("tx", receipt.TxHash.String()).
		Uint64("v_in", in.VIn).Uint64("v_out", in.VOut).Msg("accepted transaction")
	return receipt, nil
}
