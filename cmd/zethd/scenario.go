// scenario.go - End-to-end run of the shielded pool with three parties.
//
// Bob shields 200 ether as two notes of 100 and Alice, who receives nothing,
// finds nothing. Bob pays Charlie 50 and keeps 50 as change. Charlie
// withdraws 10.5 and keeps 39.5. An aliased re-spend of Charlie's note and
// tampered copies of Bob's deposit are then submitted and must be rejected.

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/joinsplit"
	"github.com/HamzaZF/zeth-client/internal/mixer"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/protocol/protocoltest"
	"github.com/HamzaZF/zeth-client/internal/wallet"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

type party struct {
	name  string
	key   *zerocash.SecretAddress
	acct  protocol.Account
	store wallet.Store
	state *wallet.State
	sync  *wallet.Synchronizer
	close func() error
}

// scenario holds what every step needs.
type scenario struct {
	cfg     *Config
	log     zerolog.Logger
	ledger  *mixer.Ledger
	builder *joinsplit.Builder
	prover  protocol.Prover
	syncOpt []wallet.Option
	parties map[string]*party
}

func accountOf(name string) protocol.Account {
	var a protocol.Account
	copy(a[:], name)
	return a
}

func (s *scenario) openStore(name string) (wallet.Store, func() error, error) {
	if err := os.MkdirAll(s.cfg.Wallet.Dir, 0o755); err != nil {
		return nil, nil, err
	}
	switch s.cfg.Wallet.Store {
	case StorePebble:
		ps, err := wallet.OpenPebbleStore(filepath.Join(s.cfg.Wallet.Dir, name), 1, nil)
		if err != nil {
			return nil, nil, err
		}
		return ps, ps.Close, nil
	default:
		fs := &wallet.FileStore{Path: filepath.Join(s.cfg.Wallet.Dir, name+"_wallet.json"), Genesis: 1}
		return fs, func() error { return nil }, nil
	}
}

// newParty creates a fresh address with an empty wallet.
func (s *scenario) newParty(ctx context.Context, name string) (*party, error) {
	key, err := zerocash.GenerateAddress()
	if err != nil {
		return nil, err
	}
	store, closeFn, err := s.openStore(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	p := &party{
		name:  name,
		key:   key,
		acct:  accountOf(name),
		store: store,
		state: wallet.NewState(1),
		close: closeFn,
	}
	p.sync = wallet.NewSynchronizer(s.ledger, []*zerocash.SecretAddress{key},
		append(s.syncOpt, wallet.WithLogger(s.log.With().Str("wallet", name).Logger()))...)
	s.parties[name] = p
	return p, nil
}

// syncAll brings every wallet up to the ledger head and persists it.
func (s *scenario) syncAll(ctx context.Context) error {
	for _, p := range s.parties {
		n, err := p.sync.Sync(ctx, p.state)
		if err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if _, err := wallet.Reconcile(ctx, p.state, s.ledger); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if err := p.store.Save(ctx, p.state); err != nil {
			return fmt.Errorf("%s: %w", p.name, err)
		}
		if n > 0 {
			s.log.Info().Str("wallet", p.name).Int("new_notes", n).
				Str("balance", zerocash.FromUnits(p.state.Balance().Uint64()).String()).Msg("synced")
		}
	}
	return nil
}

func (s *scenario) expectBalance(p *party, ether string) error {
	want, err := zerocash.ParseEther(ether)
	if err != nil {
		return err
	}
	if got := p.state.Balance(); !got.IsUint64() || got.Uint64() != want {
		return fmt.Errorf("%s holds %s ether, expected %s", p.name, zerocash.FromUnits(got.Uint64()), ether)
	}
	return nil
}

// expectRejection submits tx and requires the ledger to refuse it for reason.
func (s *scenario) expectRejection(ctx context.Context, what string, tx *protocol.MixTransaction, reason string) error {
	_, err := s.ledger.Submit(ctx, tx)
	var rej *protocol.RejectionError
	if !errors.As(err, &rej) {
		return fmt.Errorf("%s: expected rejection (%s), got %v", what, reason, err)
	}
	if rej.Reason != reason {
		return fmt.Errorf("%s: rejected for %q, expected %q", what, rej.Reason, reason)
	}
	s.log.Info().Str("attempt", what).Str("reason", rej.Reason).Msg("rejected as expected")
	return nil
}

func (s *scenario) close() {
	for _, p := range s.parties {
		if err := p.close(); err != nil {
			s.log.Warn().Err(err).Str("wallet", p.name).Msg("closing wallet store")
		}
	}
}

func (s *scenario) run(ctx context.Context) error {
	alice, err := s.newParty(ctx, "alice")
	if err != nil {
		return err
	}
	bob, err := s.newParty(ctx, "bob")
	if err != nil {
		return err
	}
	charlie, err := s.newParty(ctx, "charlie")
	if err != nil {
		return err
	}

	funds, err := zerocash.ParseEther("500")
	if err != nil {
		return err
	}
	s.ledger.Fund(bob.acct, zerocash.UnitsToWei(funds))

	// Deposit
	hundred, _ := zerocash.ParseEther("100")
	depositReq := &joinsplit.Request{
		Sender: bob.key,
		Outputs: []joinsplit.Output{
			{Recipient: bob.key.Public(), Value: hundred},
			{Recipient: bob.key.Public(), Value: hundred},
		},
		VIn:       2 * hundred,
		Recipient: bob.acct,
	}
	depositTx, depositPlan, err := s.builder.Build(ctx, depositReq)
	if err != nil {
		return fmt.Errorf("bob deposit: %w", err)
	}
	if _, err := s.builder.Submit(ctx, bob.state, depositTx, depositPlan); err != nil {
		return fmt.Errorf("bob deposit: %w", err)
	}
	if err := s.syncAll(ctx); err != nil {
		return err
	}
	if err := s.expectBalance(bob, "200"); err != nil {
		return err
	}
	if err := s.expectBalance(alice, "0"); err != nil {
		return err
	}

	// Transfer
	fifty, _ := zerocash.ParseEther("50")
	if _, err := s.builder.Transfer(ctx, bob.state, bob.key, charlie.key.Public(), fifty); err != nil {
		return fmt.Errorf("bob to charlie: %w", err)
	}
	if err := s.syncAll(ctx); err != nil {
		return err
	}
	if err := s.expectBalance(bob, "150"); err != nil {
		return err
	}
	if err := s.expectBalance(charlie, "50"); err != nil {
		return err
	}

	// Withdraw
	amount, _ := zerocash.ParseEther("10.5")
	notes, total, err := joinsplit.SelectNotes(charlie.state, amount)
	if err != nil {
		return fmt.Errorf("charlie withdraw: %w", err)
	}
	inputs := make([]joinsplit.Input, len(notes))
	for i, n := range notes {
		inputs[i] = joinsplit.RealInput(n)
	}
	withdrawTx, withdrawPlan, err := s.builder.Build(ctx, &joinsplit.Request{
		Sender:    charlie.key,
		Inputs:    inputs,
		Outputs:   []joinsplit.Output{{Recipient: charlie.key.Public(), Value: total - amount}},
		VOut:      amount,
		Recipient: charlie.acct,
	})
	if err != nil {
		return fmt.Errorf("charlie withdraw: %w", err)
	}
	if _, err := s.builder.Submit(ctx, charlie.state, withdrawTx, withdrawPlan); err != nil {
		return fmt.Errorf("charlie withdraw: %w", err)
	}
	if err := s.syncAll(ctx); err != nil {
		return err
	}
	if err := s.expectBalance(charlie, "39.5"); err != nil {
		return err
	}
	s.log.Info().Str("account", charlie.acct.String()).
		Str("wei", s.ledger.Balance(charlie.acct).Dec()).Msg("public balance after withdrawal")

	// Double spend of Charlie's note through a non-canonical nullifier.
	forged, err := protocoltest.ForgeAliasedSpend(ctx, s.prover, withdrawPlan.Witness, charlie.acct, 0, 1)
	if err != nil {
		return fmt.Errorf("forging aliased spend: %w", err)
	}
	if err := s.expectRejection(ctx, "aliased nullifier", forged, protocol.ReasonNonCanonical); err != nil {
		return err
	}

	// Tampered copies of Bob's deposit.
	swapped, err := protocoltest.ReplaceCiphertexts(depositTx)
	if err != nil {
		return err
	}
	if err := s.expectRejection(ctx, "replaced ciphertexts", swapped, protocol.ReasonInvalidSignature); err != nil {
		return err
	}
	resigned, err := protocoltest.Resign(depositTx)
	if err != nil {
		return err
	}
	if err := s.expectRejection(ctx, "re-signed deposit", resigned, protocol.ReasonHSigMismatch); err != nil {
		return err
	}

	for _, name := range []string{"alice", "bob", "charlie"} {
		p := s.parties[name]
		s.log.Info().Str("wallet", name).Str("shielded", zerocash.FromUnits(p.state.Balance().Uint64()).String()).
			Str("public_wei", s.ledger.Balance(p.acct).Dec()).Msg("final balance")
	}
	return nil
}
