// Package zerocash implements the note model of the shielded pool.
//
// Overview:
//   - Notes, commitments and nullifiers (note.go, crypto.go)
//   - Shielded addresses: a spending key a_sk with a_pk = PRF_addr(a_sk) and a
//     BN254 G1 Diffie-Hellman receiving key (keys.go)
//   - Note encryption to a recipient's receiving key (encryption.go)
//   - Conversion between ether amounts and 64-bit note units (units.go)
//
// Security Model:
//   - MiMC over the BN254 scalar field for every value the JoinSplit proof
//     recomputes (a_pk, cm, nf, h_i, output rho)
//   - A nullifier needs a_sk, so nobody but the owner can mark a note spent
//   - h_sig binds each proof to the one-time signing key of its transaction
//   - Note plaintexts are sealed with ChaCha20-Poly1305 under HKDF-BLAKE2b
//     keys derived from an ephemeral Diffie-Hellman share
//   - All randomness comes from crypto/rand through field.RandomScalar
//
// Usage:
//   - GenerateAddress, NewNote, Commit, Nullifier
//   - EncryptNote / TryDecryptNote to deliver and recognize notes
//
// References:
//   - Zerocash: Decentralized Anonymous Payments from Bitcoin (Ben-Sasson et al., 2014)
//   - ZETH: On Integrating Zerocash on Ethereum (Rondelet, Zajac, 2019)
package zerocash
