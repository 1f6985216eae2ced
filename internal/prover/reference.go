package prover

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/HamzaZF/zeth-client/internal/protocol"
)

var ErrInvalidProof = errors.New("prover: invalid proof")

// Reference proves by evaluating the relation natively and authenticating the
// statement with HMAC-SHA256 under a secret it shares only with itself. It is
// sound only for a verifier holding the same secret, which is all a local
// devnet needs.
type Reference struct {
	secret []byte
}

var (
	_ protocol.Prover   = (*Reference)(nil)
	_ protocol.Verifier = (*Reference)(nil)
)

func NewReference(secret []byte) *Reference {
	return &Reference{secret: append([]byte(nil), secret...)}
}

// VerificationKey identifies the secret without revealing it.
func (r *Reference) VerificationKey(context.Context) ([]byte, error) {
	sum := sha256.Sum256(r.secret)
	return sum[:], nil
}

func (r *Reference) Prove(ctx context.Context, w *protocol.Witness) (*protocol.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.Check(); err != nil {
		return nil, err
	}
	pi := w.PublicInputs()
	return &protocol.Proof{Bytes: r.mac(&pi), Inputs: pi}, nil
}

// Verify authenticates the residues of inputs, so two encodings of the same
// statement share a proof.
func (r *Reference) Verify(ctx context.Context, proof []byte, inputs *protocol.PublicInputs) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !hmac.Equal(proof, r.mac(inputs)) {
		return fmt.Errorf("%w: authenticator mismatch", ErrInvalidProof)
	}
	return nil
}

func (r *Reference) mac(pi *protocol.PublicInputs) []byte {
	h := hmac.New(sha256.New, r.secret)
	for _, e := range pi.Elements() {
		b := e.Bytes()
		h.Write(b[:])
	}
	return h.Sum(nil)
}
