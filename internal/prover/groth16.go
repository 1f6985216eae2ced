package prover

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/circuit"
	"github.com/HamzaZF/zeth-client/internal/protocol"
)

// Groth16 proves the JoinSplit circuit over BN254.
type Groth16 struct {
	depth int
	ccs   constraint.ConstraintSystem
	pk    groth16.ProvingKey
	vk    groth16.VerifyingKey
	log   zerolog.Logger
}

var (
	_ protocol.Prover   = (*Groth16)(nil)
	_ protocol.Verifier = (*Groth16)(nil)
)

type Option func(*Groth16)

func WithLogger(l zerolog.Logger) Option {
	return func(g *Groth16) { g.log = l }
}

// NewGroth16 compiles the circuit for the given tree depth and loads its keys
// from pkPath and vkPath, running a fresh setup and writing the keys there if
// either is missing. With empty paths the keys are kept in memory only.
func NewGroth16(depth int, pkPath, vkPath string, opts ...Option) (*Groth16, error) {
	g := &Groth16{depth: depth, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}

	start := time.Now()
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, circuit.New(depth))
	if err != nil {
		return nil, fmt.Errorf("circuit compilation failed: %w", err)
	}
	g.ccs = ccs
	g.log.Info().Int("depth", depth).Int("constraints", ccs.GetNbConstraints()).
		Dur("took", time.Since(start)).Msg("compiled joinsplit circuit")

	if pkPath == "" || vkPath == "" {
		g.pk, g.vk, err = groth16.Setup(ccs)
	} else {
		g.pk, g.vk, err = SetupOrLoadKeys(ccs, pkPath, vkPath)
	}
	if err != nil {
		return nil, fmt.Errorf("groth16 setup failed: %w", err)
	}
	return g, nil
}

func (g *Groth16) VerificationKey(context.Context) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := g.vk.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type proveResult struct {
	proof *protocol.Proof
	err   error
}

// Prove runs the prover in the background so that ctx can abandon it. An
// abandoned proof is discarded when it completes.
func (g *Groth16) Prove(ctx context.Context, w *protocol.Witness) (*protocol.Proof, error) {
	for i := range w.Inputs {
		if p := w.Inputs[i].Path; p == nil || p.Depth() != g.depth {
			return nil, fmt.Errorf("input %d: path depth does not match circuit depth %d", i, g.depth)
		}
	}
	assignment, err := circuit.Assign(w)
	if err != nil {
		return nil, err
	}
	full, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("witness creation failed: %w", err)
	}

	done := make(chan proveResult, 1)
	go func() {
		start := time.Now()
		proof, err := groth16.Prove(g.ccs, g.pk, full)
		if err != nil {
			done <- proveResult{err: fmt.Errorf("proof generation failed: %w", err)}
			return
		}
		var buf bytes.Buffer
		if _, err := proof.WriteTo(&buf); err != nil {
			done <- proveResult{err: fmt.Errorf("proof marshaling failed: %w", err)}
			return
		}
		g.log.Debug().Dur("took", time.Since(start)).Msg("groth16 proof generated")
		done <- proveResult{proof: &protocol.Proof{Bytes: buf.Bytes(), Inputs: w.PublicInputs()}}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.proof, r.err
	}
}

func (g *Groth16) Verify(ctx context.Context, proof []byte, inputs *protocol.PublicInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	pub, err := frontend.NewWitness(circuit.PublicAssignment(inputs), ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return fmt.Errorf("public witness creation failed: %w", err)
	}
	p := groth16.NewProof(ecc.BN254)
	if _, err := p.ReadFrom(bytes.NewReader(proof)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	if err := groth16.Verify(p, g.vk, pub); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidProof, err)
	}
	return nil
}

// SaveProvingKey saves a Groth16 proving key to disk.
func SaveProvingKey(path string, pk groth16.ProvingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = pk.WriteTo(f)
	return err
}

// SaveVerifyingKey saves a Groth16 verifying key to disk.
func SaveVerifyingKey(path string, vk groth16.VerifyingKey) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = vk.WriteTo(f)
	return err
}

func LoadProvingKey(path string) (groth16.ProvingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	pk := groth16.NewProvingKey(ecc.BN254)
	_, err = pk.ReadFrom(f)
	return pk, err
}

func LoadVerifyingKey(path string) (groth16.VerifyingKey, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vk := groth16.NewVerifyingKey(ecc.BN254)
	_, err = vk.ReadFrom(f)
	return vk, err
}

// SetupOrLoadKeys loads the key pair for ccs, or generates and saves it if
// either file cannot be read. Keys on disk must come from the same circuit
// depth.
func SetupOrLoadKeys(ccs constraint.ConstraintSystem, pkPath, vkPath string) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	pk, pkErr := LoadProvingKey(pkPath)
	vk, vkErr := LoadVerifyingKey(vkPath)
	if pkErr == nil && vkErr == nil {
		return pk, vk, nil
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	if err := SaveProvingKey(pkPath, pk); err != nil {
		return nil, nil, err
	}
	if err := SaveVerifyingKey(vkPath, vk); err != nil {
		return nil, nil, err
	}
	return pk, vk, nil
}
