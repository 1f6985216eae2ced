package circuit

import (
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/HamzaZF/zeth-client/internal/field"
	"github.com/HamzaZF/zeth-client/internal/merkle"
	"github.com/HamzaZF/zeth-client/internal/protocol"
	"github.com/HamzaZF/zeth-client/internal/protocol/protocoltest"
)

const testDepth = 4

func witness(t *testing.T, vIn, vOut uint64, in, out [2]uint64) *protocol.Witness {
	t.Helper()
	w, err := protocoltest.RandomWitness(testDepth, vIn, vOut, in, out)
	require.NoError(t, err)
	require.NoError(t, w.Check())
	return w
}

func solve(t *testing.T, w *protocol.Witness) error {
	t.Helper()
	assignment, err := Assign(w)
	require.NoError(t, err)
	return test.IsSolved(New(testDepth), assignment, ecc.BN254.ScalarField())
}

func TestJoinSplitSatisfied(t *testing.T) {
	cases := map[string]*protocol.Witness{
		"transfer": witness(t, 0, 0, [2]uint64{100, 100}, [2]uint64{50, 150}),
		"deposit":  witness(t, 200, 0, [2]uint64{0, 0}, [2]uint64{100, 100}),
		"withdraw": witness(t, 0, 10, [2]uint64{50, 0}, [2]uint64{40, 0}),
		"max":      witness(t, 0, ^uint64(0), [2]uint64{^uint64(0), 0}, [2]uint64{0, 0}),
	}
	for name, w := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, solve(t, w))
		})
	}
}

func TestJoinSplitDummyInputIgnoresRoot(t *testing.T) {
	w := witness(t, 30, 0, [2]uint64{0, 0}, [2]uint64{30, 0})
	w.Inputs[0].Path = merkle.ZeroPath(testDepth)
	w.Inputs[1].Path = merkle.ZeroPath(testDepth)
	require.NoError(t, solve(t, w))
}

func TestJoinSplitRejects(t *testing.T) {
	mutations := map[string]func(w *protocol.Witness){
		"value not conserved": func(w *protocol.Witness) { w.VOut++ },
		"foreign key":         func(w *protocol.Witness) { w.Inputs[0].Ask = field.NewElement(7) },
		"wrong root":          func(w *protocol.Witness) { w.Root = field.NewElement(9) },
		"output rho":          func(w *protocol.Witness) { w.Outputs[1].Rho = field.NewElement(3) },
		"wrong leaf index":    func(w *protocol.Witness) { w.Inputs[1].Path.Index ^= 1 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			w := witness(t, 0, 0, [2]uint64{10, 20}, [2]uint64{25, 5})
			mutate(w)
			require.Error(t, w.Check())

			// The statement is computed from the mutated witness, so only the
			// relation itself can catch these.
			require.Error(t, solve(t, w))
		})
	}
}

func TestJoinSplitRejectsWrappedValue(t *testing.T) {
	w := witness(t, 0, 0, [2]uint64{10, 0}, [2]uint64{10, 0})
	assignment, err := Assign(w)
	require.NoError(t, err)

	// P-1 and 11 sum to 10 in the field.
	p := field.Modulus()
	minusOne := new(big.Int).Sub(p, big.NewInt(1))
	assignment.Outputs[0].Value = minusOne
	assignment.Outputs[1].Value = 11
	require.Error(t, test.IsSolved(New(testDepth), assignment, ecc.BN254.ScalarField()))
}
