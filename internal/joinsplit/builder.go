// Package joinsplit builds and submits shielded transactions.
//
// A transaction goes through, in order: padding to two inputs and two
// outputs, one-time key generation, h_sig, proof request, encryption of the
// outputs, signing, assembly and submission. The signing key exists before
// the proof because h_sig, a public input, depends on it, and the
// ciphertexts exist before the signature because the digest covers them.
//
// Nothing is retried. A rejected or timed-out submission is reported to the
// caller, who may Reconcile and rebuild against a fresh root.
package joinsplit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
	"github.com/HamzaZF/zeth-client/internal/metrics"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/schnorr"
	"github.com/HamzaZF/zeth-client/internal/wallet"
	"github.com/HamzaZF/zeth-client/internal/zerocash"
)

type Builder struct {
	prover        protocol.Prover
	ledger        protocol.Ledger
	proofTimeout  time.Duration
	submitTimeout time.Duration
	log           zerolog.Logger
	metrics       *metrics.Metrics
}

type Option func(*Builder)

func WithLogger(l zerolog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithProofTimeout bounds each proof request. Zero means only the caller's
// deadline applies.
func WithProofTimeout(d time.Duration) Option {
	return func(b *Builder) { b.proofTimeout = d }
}

// WithSubmitTimeout bounds each wait for confirmation.
func WithSubmitTimeout(d time.Duration) Option {
	return func(b *Builder) { b.submitTimeout = d }
}

func New(prover protocol.Prover, ledger protocol.Ledger, opts ...Option) *Builder {
	b := &Builder{prover: prover, ledger: ledger, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// CheckBalance reports ErrValueConservation unless inputs plus VIn equal
// outputs plus VOut. Sums are exact.
func (r *Request) CheckBalance() error {
	lhs := new(big.Int).SetUint64(r.VIn)
	rhs := new(big.Int).SetUint64(r.VOut)
	for _, in := range r.Inputs {
		lhs.Add(lhs, new(big.Int).SetUint64(in.value()))
	}
	for _, out := range r.Outputs {
		rhs.Add(rhs, new(big.Int).SetUint64(out.Value))
	}
	if lhs.Cmp(rhs) != 0 {
		return fmt.Errorf("%w: %s in, %s out", ErrValueConservation, lhs, rhs)
	}
	return nil
}

func (b *Builder) validate(req *Request) error {
	if req.Sender == nil {
		return errors.New("joinsplit: request has no sender")
	}
	if len(req.Inputs) > Arity || len(req.Outputs) > Arity {
		return ErrTooManyNotes
	}
	if err := req.CheckBalance(); err != nil {
		return err
	}
	apk := req.Sender.Public().Apk
	for i, in := range req.Inputs {
		if in.IsDummy() {
			continue
		}
		rec := in.Record()
		if rec.Spent {
			return fmt.Errorf("%w: input %d already spent", ErrUnusableInput, i)
		}
		if !rec.Note.Apk.Equal(&apk) {
			return fmt.Errorf("%w: input %d not owned by sender", ErrUnusableInput, i)
		}
	}
	return nil
}

// Build runs every step up to assembly. Aborting it has no side effect.
func (b *Builder) Build(ctx context.Context, req *Request) (*protocol.MixTransaction, *Plan, error) {
	if err := b.validate(req); err != nil {
		return nil, nil, err
	}
	kind := req.Kind()
	sender := req.Sender.Public()

	// Paths are computed against the latest tree, immediately before proving.
	height, err := b.ledger.CurrentHeight(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("joinsplit: ledger height: %w", err)
	}
	tree, err := b.ledger.TreeSnapshot(ctx, height)
	if err != nil {
		return nil, nil, fmt.Errorf("joinsplit: tree snapshot at %d: %w", height, err)
	}
	root := tree.Root()

	w := &protocol.Witness{Root: root, VIn: req.VIn, VOut: req.VOut}
	plan := &Plan{Kind: kind, Witness: w}

	// Pad
	for i := 0; i < Arity; i++ {
		in := DummyInput()
		if i < len(req.Inputs) {
			in = req.Inputs[i]
		}
		slot := &w.Inputs[i]
		slot.Ask = req.Sender.Ask
		if in.IsDummy() {
			n, err := zerocash.NewDummyNote(sender.Apk)
			if err != nil {
				return nil, nil, err
			}
			slot.Note = *n
			slot.Path = merkle.ZeroPath(tree.Depth())
			continue
		}
		rec := in.Record()
		path, err := tree.ComputePath(rec.LeafIndex)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: input %d: %v", ErrUnusableInput, i, err)
		}
		if !merkle.Verify(root, zerocash.Commit(&rec.Note), path) {
			return nil, nil, fmt.Errorf("%w: input %d is not at leaf %d", ErrUnusableInput, i, rec.LeafIndex)
		}
		slot.Note = rec.Note
		slot.Path = path
		plan.Spends = append(plan.Spends, rec)
	}

	// KeyGen and h_sig
	kp, err := schnorr.KeyGen()
	if err != nil {
		return nil, nil, err
	}
	var nfs [Arity]field.Word
	for i := range w.Inputs {
		nfs[i] = field.WordOf(zerocash.Nullifier(w.Inputs[i].Ask, w.Inputs[i].Note.Rho))
	}
	w.HSig = zerocash.HSig(nfs, kp.VK.Bytes())

	if w.Phi, err = field.RandomScalar(); err != nil {
		return nil, nil, err
	}
	recipients := [Arity]zerocash.Address{sender, sender}
	for j := 0; j < Arity; j++ {
		var value uint64
		if j < len(req.Outputs) {
			recipients[j] = req.Outputs[j].Recipient
			value = req.Outputs[j].Value
		}
		n, err := zerocash.NewOutputNote(recipients[j].Apk, value, w.Phi, j, w.HSig)
		if err != nil {
			return nil, nil, err
		}
		w.Outputs[j] = *n
	}

	// RequestProof
	expected := w.PublicInputs()
	proof, err := b.prove(ctx, w)
	if err != nil {
		return nil, nil, err
	}
	if !proof.Inputs.Equal(&expected) {
		return nil, nil, &ProofGenerationError{Err: ErrStatementMismatch}
	}

	// Encrypt
	eph, err := zerocash.GenerateEncryptionKeyPair()
	if err != nil {
		return nil, nil, err
	}
	tx := &protocol.MixTransaction{
		EphemeralPk: eph.Pk,
		Proof:       proof.Bytes,
		VK:          kp.VK,
		Inputs:      expected,
		Recipient:   req.Recipient,
	}
	for j := range w.Outputs {
		ct, err := zerocash.EncryptNote(&w.Outputs[j], recipients[j].Pk, eph, j)
		if err != nil {
			return nil, nil, err
		}
		tx.Ciphertexts[j] = ct
	}

	// Sign and Assemble
	tx.Signature = kp.Sign(tx.SignatureDigest())
	if err := tx.Validate(); err != nil {
		return nil, nil, err
	}

	b.metrics.TxBuilt(kind)
	b.log.Info().Str("kind", kind).Uint64("v_in", req.VIn).Uint64("v_out", req.VOut).
		Int("spends", len(plan.Spends)).Uint64("height", height).Msg("built transaction")
	return tx, plan, nil
}

func (b *Builder) prove(ctx context.Context, w *protocol.Witness) (*protocol.Proof, error) {
	pctx, cancel := withTimeout(ctx, b.proofTimeout)
	defer cancel()

	start := time.Now()
	proof, err := b.prover.Prove(pctx, w)
	b.metrics.ProofTime(time.Since(start))
	switch {
	case err == nil:
		return proof, nil
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(pctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w: waiting for proof", ErrTimeout)
	case errors.Is(err, context.Canceled):
		return nil, err
	default:
		return nil, &ProofGenerationError{Err: err}
	}
}

// Submit hands tx to the ledger and waits for the outcome. Only acceptance
// changes st: the plan's inputs are marked spent. On ErrTimeout the outcome
// is unknown and the caller should Reconcile later.
func (b *Builder) Submit(ctx context.Context, st *wallet.State, tx *protocol.MixTransaction, plan *Plan) (*protocol.Receipt, error) {
	sctx, cancel := withTimeout(ctx, b.submitTimeout)
	defer cancel()

	receipt, err := b.ledger.Submit(sctx, tx)
	if err != nil {
		var rejected *protocol.RejectionError
		switch {
		case errors.As(err, &rejected):
			b.metrics.Submission("rejected")
			b.log.Warn().Str("reason", rejected.Reason).Msg("transaction rejected")
			return nil, err
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(sctx.Err(), context.DeadlineExceeded):
			b.metrics.Submission("timeout")
			return nil, fmt.Errorf("%w: waiting for confirmation", ErrTimeout)
		default:
			b.metrics.Submission("error")
			return nil, err
		}
	}

	b.metrics.Submission("accepted")
	for _, rec := range plan.Spends {
		st.MarkSpent(rec.Nullifier)
	}
	b.log.Info().Str("tx", receipt.TxHash.String()).Uint64("height", receipt.Height).
		Str("kind", plan.Kind).Msg("transaction confirmed")
	return receipt, nil
}

// Execute is Build followed by Submit.
func (b *Builder) Execute(ctx context.Context, st *wallet.State, req *Request) (*protocol.Receipt, error) {
	tx, plan, err := b.Build(ctx, req)
	if err != nil {
		return nil, err
	}
	return b.Submit(ctx, st, tx, plan)
}
