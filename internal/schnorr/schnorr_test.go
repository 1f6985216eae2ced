package schnorr

import (
	"crypto/rand"
	"crypto/sha256"
	"testing"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HamzaZF/zeth-client/internal/field"
)

func randomDigest(t *testing.T) []byte {
	t.Helper()
	buf := make([]byte, 64)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	d := sha256.Sum256(buf)
	return d[:]
}

func TestSignVerify(t *testing.T) {
	for i := 0; i < 8; i++ {
		kp, err := KeyGen()
		require.NoError(t, err)
		m := randomDigest(t)
		sig := kp.Sign(m)
		assert.True(t, Verify(kp.VK, m, sig))
	}
}

func TestSignDeterministic(t *testing.T) {
	kp, err := KeyGen()
	require.NoError(t, err)
	m := randomDigest(t)
	a := kp.Sign(m)
	b := kp.Sign(m)
	assert.True(t, a.Sigma.Equal(&b.Sigma))
}

func TestVerifyRejectsMessageBitFlips(t *testing.T) {
	kp, err := KeyGen()
	require.NoError(t, err)
	m := randomDigest(t)
	sig := kp.Sign(m)

	for bit := 0; bit < len(m)*8; bit++ {
		mutated := append([]byte(nil), m...)
		mutated[bit/8] ^= 1 << (bit % 8)
		assert.False(t, Verify(kp.VK, mutated, sig), "bit %d", bit)
	}
}

func TestVerifyRejectsSignatureBitFlips(t *testing.T) {
	kp, err := KeyGen()
	require.NoError(t, err)
	m := randomDigest(t)
	raw := kp.Sign(m).Bytes()

	for bit := 0; bit < len(raw)*8; bit++ {
		mutated := append([]byte(nil), raw...)
		mutated[bit/8] ^= 1 << (bit % 8)
		sig, err := ParseSignature(mutated)
		if err != nil {
			// flipped into a non-canonical scalar
			continue
		}
		assert.False(t, Verify(kp.VK, m, sig), "bit %d", bit)
	}
}

func TestVerifyOtherKey(t *testing.T) {
	a, err := KeyGen()
	require.NoError(t, err)
	b, err := KeyGen()
	require.NoError(t, err)
	m := randomDigest(t)
	assert.False(t, Verify(b.VK, m, a.Sign(m)))
}

func TestVerifyMalformedKey(t *testing.T) {
	kp, err := KeyGen()
	require.NoError(t, err)
	m := randomDigest(t)
	sig := kp.Sign(m)

	bad := kp.VK
	bad.X = bn254.G1Affine{}
	assert.False(t, Verify(bad, m, sig))

	bad = kp.VK
	bad.Y.Y.SetOne()
	assert.False(t, Verify(bad, m, sig))
}

func TestEncodingRoundTrip(t *testing.T) {
	kp, err := KeyGen()
	require.NoError(t, err)

	vk, err := ParseVerificationKey(kp.VK.Bytes())
	require.NoError(t, err)
	assert.True(t, vk.X.Equal(&kp.VK.X))
	assert.True(t, vk.Y.Equal(&kp.VK.Y))

	_, err = ParseVerificationKey(kp.VK.Bytes()[1:])
	assert.ErrorIs(t, err, ErrInvalidVerificationKey)

	m := randomDigest(t)
	sig := kp.Sign(m)
	parsed, err := ParseSignature(sig.Bytes())
	require.NoError(t, err)
	assert.True(t, Verify(vk, m, parsed))

	alias, ok := field.Alias(field.WordOf(sig.Sigma), 1)
	require.True(t, ok)
	_, err = ParseSignature(alias[:])
	assert.ErrorIs(t, err, ErrInvalidSignature)
}
