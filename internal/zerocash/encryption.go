// encryption.go - Note encryption channel.
//
// Both outputs of a transaction are encrypted under one ephemeral key E = e*G.
// For output j the sender derives the shared point S = e*k_pk_j, runs HKDF
// (BLAKE2b-256) over enc(S) with info enc(E) || enc(k_pk_j) || j to obtain a
// ChaCha20-Poly1305 key and nonce, and seals the encoded note. The output
// index in the KDF info keeps the (key, nonce) pair unique even when both
// outputs go to the same recipient.

package zerocash

import (
	"errors"
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/HamzaZF/zeth-client/internal/field"
)

// CiphertextSize is fixed by the note encoding and the AEAD tag.
const CiphertextSize = NoteSize + chacha20poly1305.Overhead

var ErrKeyAgreement = errors.New("zerocash: key agreement failed")

var kdfSalt = []byte("zeth-note-encryption")

func newBlake2b256() hash.Hash {
	// an unkeyed BLAKE2b never fails to construct
	h, _ := blake2b.New256(nil)
	return h
}

func kdf(shared, ephemeral, recipient bn254.G1Affine, index int) ([]byte, []byte, error) {
	if shared.IsInfinity() {
		return nil, nil, ErrKeyAgreement
	}
	s := field.EncodePoint(shared)
	e := field.EncodePoint(ephemeral)
	r := field.EncodePoint(recipient)
	info := make([]byte, 0, 2*field.PointSize+1)
	info = append(info, e[:]...)
	info = append(info, r[:]...)
	info = append(info, byte(index))

	var okm [chacha20poly1305.KeySize + chacha20poly1305.NonceSize]byte
	key := hkdf.New(newBlake2b256, s[:], kdfSalt, info)
	if _, err := key.Read(okm[:]); err != nil {
		return nil, nil, err
	}
	return okm[:chacha20poly1305.KeySize], okm[chacha20poly1305.KeySize:], nil
}

// EncryptNote seals note for the holder of recipient under the transaction's
// ephemeral key. index is the output position (0 or 1).
func EncryptNote(note *Note, recipient bn254.G1Affine, ephemeral *EncryptionKeyPair, index int) ([]byte, error) {
	shared := ephemeral.SharedSecret(recipient)
	key, nonce, err := kdf(shared, ephemeral.Pk, recipient, index)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, note.Encode(), nil), nil
}

// TryDecryptNote attempts to open ciphertext with the receiving key own. A
// ciphertext meant for someone else is the common case while scanning the
// ledger, so failure is reported as ok == false rather than as an error.
func TryDecryptNote(ciphertext []byte, ephemeral bn254.G1Affine, own *EncryptionKeyPair, index int) (*Note, bool) {
	if len(ciphertext) != CiphertextSize {
		return nil, false
	}
	shared := own.SharedSecret(ephemeral)
	key, nonce, err := kdf(shared, ephemeral, own.Pk, index)
	if err != nil {
		return nil, false
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, false
	}
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false
	}
	note, err := DecodeNote(plain)
	if err != nil {
		return nil, false
	}
	return note, true
}
