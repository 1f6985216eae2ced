// Package circuit defines the JoinSplit relation as a gnark circuit over the
// BN254 scalar field.
//
// For each of the two inputs the circuit recomputes a_pk from a_sk, the note
// commitment, its nullifier and the signature tag h_i, and checks membership
// of the commitment under the public root whenever the note value is
// non-zero. For each output it derives rho from phi and h_sig and recomputes
// the commitment. All values are range-checked to 64 bits before the
// conservation check, so sums cannot wrap around the field.
package circuit
