// Package proverrpc exposes a protocol.Prover over HTTP so that wallets can
// hand proving to a dedicated machine.
//
// Every request and response is a Message envelope posted to /message. The
// witness travels in the clear: the prover service must be trusted with the
// spending keys of the notes it proves for.
package proverrpc

import (
	"encoding/json"

	"github.com/HamzaZF/zeth-client/internal/protocol"
)

// Message types.
const (
	TypeProve           = "prove"
	TypeProof           = "proof"
	TypeVerificationKey = "verification_key"
	TypeError           = "error"
)

// Message is the envelope for every request and response.
type Message struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	SenderID string          `json:"senderId"`
}

type ProvePayload struct {
	Witness *protocol.Witness `json:"witness"`
}

// ProofPayload carries the statement in its wire encoding.
type ProofPayload struct {
	Proof  []byte `json:"proof"`
	Inputs []byte `json:"inputs"`
}

type VerificationKeyPayload struct {
	Key []byte `json:"key"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

func newMessage(typ, sender string, payload any) (*Message, error) {
	msg := &Message{Type: typ, SenderID: sender}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return msg, nil
}
