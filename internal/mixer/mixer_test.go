package mixer_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/joinsplit"
	"github.com/HamzaZF/zeth-client/internal/mixer"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/protocol/protocoltest"
	"github.com/HamzaZF/zeth-client/internal/prover"
	"github.com/HamzaZF/zeth-client/internal/wallet"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

const depth = 8

type party struct {
	key   *zerocash.SecretAddress
	state *wallet.State
	sync  *wallet.Synchronizer
	acct  protocol.Account
}

type world struct {
	ref    *prover.Reference
	ledger *mixer.Ledger
	b      *joinsplit.Builder
}

func newWorld(t *testing.T, opts ...mixer.Option) *world {
	t.Helper()
	ref := prover.NewReference([]byte("mixer"))
	l, err := mixer.New(depth, ref, opts...)
	require.NoError(t, err)
	return &world{ref: ref, ledger: l, b: joinsplit.New(ref, l)}
}

func (w *world) party(t *testing.T, id byte) *party {
	t.Helper()
	key, err := zerocash.GenerateAddress()
	require.NoError(t, err)
	p := &party{key: key, state: wallet.NewState(1)}
	p.acct[0] = id
	p.sync = wallet.NewSynchronizer(w.ledger, []*zerocash.SecretAddress{key})
	return p
}

func (p *party) catchUp(t *testing.T) int {
	t.Helper()
	n, err := p.sync.Sync(context.Background(), p.state)
	require.NoError(t, err)
	return n
}

func ether(t *testing.T, s string) uint64 {
	t.Helper()
	u, err := zerocash.ParseEther(s)
	require.NoError(t, err)
	return u
}

func rejection(t *testing.T, err error) string {
	t.Helper()
	var rej *protocol.RejectionError
	require.ErrorAs(t, err, &rej)
	return rej.Reason
}

func TestMixerScenario(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	alice, bob, charlie := w.party(t, 1), w.party(t, 2), w.party(t, 3)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(ether(t, "500")))

	// Bob shields 200 as two notes of 100.
	hundred := ether(t, "100")
	_, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct,
		joinsplit.Output{Recipient: bob.key.Public(), Value: hundred},
		joinsplit.Output{Recipient: bob.key.Public(), Value: hundred})
	require.NoError(t, err)
	assert.Equal(t, 2, bob.catchUp(t))
	assert.Zero(t, alice.catchUp(t))
	assert.Equal(t, zerocash.UnitsToWei(ether(t, "300")), w.ledger.Balance(bob.acct))
	assert.Equal(t, zerocash.UnitsToWei(ether(t, "200")), w.ledger.Pool())

	before := bob.state.Clone()

	// Bob pays Charlie 50.
	fifty := ether(t, "50")
	_, err = w.b.Transfer(ctx, bob.state, bob.key, charlie.key.Public(), fifty)
	require.NoError(t, err)
	bob.catchUp(t)
	assert.Equal(t, 1, charlie.catchUp(t))
	assert.Equal(t, ether(t, "150"), bob.state.Balance().Uint64())
	assert.Equal(t, fifty, charlie.state.Balance().Uint64())

	// Replaying the spent note from an older view fails at the nullifier check.
	_, err = w.b.Transfer(ctx, before, bob.key, alice.key.Public(), fifty)
	assert.Equal(t, protocol.ReasonNullifierSpent, rejection(t, err))
	assert.Zero(t, alice.catchUp(t))

	// Charlie withdraws 10.5 to his account.
	out := ether(t, "10.5")
	_, err = w.b.Withdraw(ctx, charlie.state, charlie.key, charlie.acct, out)
	require.NoError(t, err)
	charlie.catchUp(t)
	assert.Equal(t, ether(t, "39.5"), charlie.state.Balance().Uint64())
	assert.Equal(t, zerocash.UnitsToWei(out), w.ledger.Balance(charlie.acct))
	assert.Equal(t, zerocash.UnitsToWei(ether(t, "189.5")), w.ledger.Pool())

	h, err := w.ledger.CurrentHeight(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), h)
}

func TestAliasedNullifierIsRejected(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(100))

	_, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct, joinsplit.Output{Recipient: bob.key.Public(), Value: 100})
	require.NoError(t, err)
	bob.catchUp(t)

	tx, plan, err := w.b.Build(ctx, &joinsplit.Request{
		Sender:    bob.key,
		Inputs:    []joinsplit.Input{joinsplit.RealInput(bob.state.Unspent()[0])},
		VOut:      100,
		Recipient: bob.acct,
	})
	require.NoError(t, err)
	_, err = w.b.Submit(ctx, bob.state, tx, plan)
	require.NoError(t, err)

	// Re-encoding a nullifier without touching anything else is caught on
	// encoding alone, before the now-stale signature is looked at.
	for i := 0; i < 2; i++ {
		alias, err := protocoltest.AliasNullifier(tx, i, 1)
		require.NoError(t, err)
		assert.Error(t, alias.Inputs.Canonical())
		_, err = w.ledger.Submit(ctx, alias)
		assert.Equal(t, protocol.ReasonNonCanonical, rejection(t, err), "input %d", i)
	}

	forged, err := protocoltest.ForgeAliasedSpend(ctx, w.ref, plan.Witness, bob.acct, 0, 1)
	require.NoError(t, err)

	// The forgery is otherwise sound.
	require.NoError(t, w.ref.Verify(ctx, forged.Proof, &forged.Inputs))
	spent, err := w.ledger.NullifierSpent(ctx, forged.Inputs.Nullifiers[0])
	require.NoError(t, err)
	assert.True(t, spent)

	_, err = w.ledger.Submit(ctx, forged)
	assert.Equal(t, protocol.ReasonNonCanonical, rejection(t, err))
	assert.Zero(t, w.ledger.Pool().Uint64())
}

func TestTamperedTransactions(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(10))
	req := func() *joinsplit.Request {
		return &joinsplit.Request{
			Sender:    bob.key,
			Outputs:   []joinsplit.Output{{Recipient: bob.key.Public(), Value: 10}},
			VIn:       10,
			Recipient: bob.acct,
		}
	}

	tx, _, err := w.b.Build(ctx, req())
	require.NoError(t, err)

	swapped, err := protocoltest.ReplaceCiphertexts(tx)
	require.NoError(t, err)
	_, err = w.ledger.Submit(ctx, swapped)
	assert.Equal(t, protocol.ReasonInvalidSignature, rejection(t, err))

	resigned, err := protocoltest.Resign(tx)
	require.NoError(t, err)
	_, err = w.ledger.Submit(ctx, resigned)
	assert.Equal(t, protocol.ReasonHSigMismatch, rejection(t, err))

	bad := tx.Clone()
	bad.Proof[0] ^= 1
	_, err = w.ledger.Submit(ctx, bad)
	assert.Equal(t, protocol.ReasonInvalidProof, rejection(t, err))

	poor := tx.Clone()
	poor.Recipient[0] = 9
	_, err = w.ledger.Submit(ctx, poor)
	// Recipient is covered by the signature.
	assert.Equal(t, protocol.ReasonInvalidSignature, rejection(t, err))

	h, _ := w.ledger.CurrentHeight(ctx)
	assert.Zero(t, h)

	_, err = w.ledger.Submit(ctx, tx)
	require.NoError(t, err)
	_, err = w.ledger.Submit(ctx, tx)
	assert.Equal(t, protocol.ReasonNullifierSpent, rejection(t, err))
}

func TestInsufficientPublicFunds(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(5))

	_, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct, joinsplit.Output{Recipient: bob.key.Public(), Value: 6})
	assert.Equal(t, protocol.ReasonInsufficientFunds, rejection(t, err))
	assert.Equal(t, zerocash.UnitsToWei(5), w.ledger.Balance(bob.acct))
	assert.True(t, w.ledger.Pool().IsZero())
}

func TestRootHistory(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t, mixer.WithRootHistory(2))
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(100))

	// Built against the genesis root, submitted after it has aged out.
	stale, _, err := w.b.Build(ctx, &joinsplit.Request{
		Sender:    bob.key,
		Outputs:   []joinsplit.Output{{Recipient: bob.key.Public(), Value: 1}},
		VIn:       1,
		Recipient: bob.acct,
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct, joinsplit.Output{Recipient: bob.key.Public(), Value: 1})
		require.NoError(t, err)
	}
	_, err = w.ledger.Submit(ctx, stale)
	assert.Equal(t, protocol.ReasonUnknownRoot, rejection(t, err))

	_, err = mixer.New(depth, w.ref, mixer.WithRootHistory(0))
	assert.Error(t, err)
}

func TestEventsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(100))
	var receipts []*protocol.Receipt
	for i := uint64(1); i <= 3; i++ {
		r, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct, joinsplit.Output{Recipient: bob.key.Public(), Value: i})
		require.NoError(t, err)
		receipts = append(receipts, r)
	}

	_, err := w.ledger.FetchMixEvents(ctx, 0, 100)
	require.ErrorIs(t, err, protocol.ErrBeyondHead)
	evs, err := w.ledger.FetchMixEvents(ctx, 0, 3)
	require.NoError(t, err)
	require.Len(t, evs, 3)
	for i, ev := range evs {
		assert.Equal(t, uint64(i+1), ev.Height)
		assert.Equal(t, receipts[i].LeafIndices, ev.LeafIndices)
	}
	evs, err = w.ledger.FetchMixEvents(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, [2]uint64{2, 3}, evs[0].LeafIndices)
	_, err = w.ledger.FetchMixEvents(ctx, 4, 9)
	assert.ErrorIs(t, err, protocol.ErrBeyondHead)
	evs, err = w.ledger.FetchMixEvents(ctx, 4, 3)
	require.NoError(t, err)
	assert.Empty(t, evs)

	for h := uint64(0); h <= 3; h++ {
		snap, err := w.ledger.TreeSnapshot(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, 2*h, snap.Size())
		if h > 0 {
			assert.Equal(t, receipts[h-1].Root, field.WordOf(snap.Root()))
		}
	}
	// Snapshots are private copies.
	snap, err := w.ledger.TreeSnapshot(ctx, 1)
	require.NoError(t, err)
	_, err = snap.AppendBatch(field.NewElement(7))
	require.NoError(t, err)
	again, err := w.ledger.TreeSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), again.Size())

	_, err = w.ledger.TreeSnapshot(ctx, 4)
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()
	w := newWorld(t)
	bob := w.party(t, 2)
	w.ledger.Fund(bob.acct, zerocash.UnitsToWei(100))
	_, err := w.b.Deposit(ctx, bob.state, bob.key, bob.acct, joinsplit.Output{Recipient: bob.key.Public(), Value: 60})
	require.NoError(t, err)
	bob.catchUp(t)
	tx, plan, err := w.b.Build(ctx, &joinsplit.Request{
		Sender: bob.key,
		Inputs: []joinsplit.Input{joinsplit.RealInput(bob.state.Unspent()[0])},
		VOut:   60, Recipient: bob.acct,
	})
	require.NoError(t, err)
	_, err = w.b.Submit(ctx, bob.state, tx, plan)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ledger.json")
	require.NoError(t, w.ledger.SaveToFile(path))
	loaded, err := mixer.LoadFromFile(path, w.ref)
	require.NoError(t, err)

	h, _ := loaded.CurrentHeight(ctx)
	assert.Equal(t, uint64(2), h)
	assert.Equal(t, w.ledger.Balance(bob.acct), loaded.Balance(bob.acct))
	assert.True(t, loaded.Pool().IsZero())
	spent, err := loaded.NullifierSpent(ctx, tx.Inputs.Nullifiers[0])
	require.NoError(t, err)
	assert.True(t, spent)

	// The restored ledger keeps accepting and rejecting as before.
	_, err = loaded.Submit(ctx, tx)
	assert.Equal(t, protocol.ReasonNullifierSpent, rejection(t, err))
	fresh := wallet.NewState(1)
	n, err := wallet.NewSynchronizer(loaded, []*zerocash.SecretAddress{bob.key}).Sync(ctx, fresh)
	require.NoError(t, err)
	// The 60 note plus three zero-valued padding outputs.
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(60), fresh.Balance().Uint64())
	marked, err := wallet.Reconcile(ctx, fresh, loaded)
	require.NoError(t, err)
	assert.Equal(t, 1, marked)
	assert.Zero(t, fresh.Balance().Sign())
}
