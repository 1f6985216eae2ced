package proverrpc

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/HamzaZF/zeth-client/internal/protocol"
)

const serverID = "prover"

// Server serves a Prover on /message.
type Server struct {
	prover  protocol.Prover
	limiter *ClientLimiter
	log     zerolog.Logger
}

type ServerOption func(*Server)

func WithServerLogger(l zerolog.Logger) ServerOption {
	return func(s *Server) { s.log = l }
}

// WithRateLimit replaces the default limit of one proof per second with a
// burst of four.
func WithRateLimit(l *ClientLimiter) ServerOption {
	return func(s *Server) { s.limiter = l }
}

func NewServer(p protocol.Prover, opts ...ServerOption) *Server {
	s := &Server{
		prover:  p,
		limiter: NewClientLimiter(1, 4),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the HTTP handler, to be mounted at the server root.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/message", s.messageHandler)
	return mux
}

func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.reply(w, http.StatusMethodNotAllowed, TypeError, ErrorPayload{Error: "POST only"})
		return
	}
	var msg Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.reply(w, http.StatusBadRequest, TypeError, ErrorPayload{Error: "invalid request body"})
		return
	}
	if !s.limiter.Allow(msg.SenderID) {
		s.log.Warn().Str("client", msg.SenderID).Msg("rate limit exceeded")
		s.reply(w, http.StatusTooManyRequests, TypeError, ErrorPayload{Error: "rate limit exceeded"})
		return
	}
	s.log.Debug().Str("client", msg.SenderID).Str("type", msg.Type).Msg("received message")

	switch msg.Type {
	case TypeVerificationKey:
		vk, err := s.prover.VerificationKey(r.Context())
		if err != nil {
			s.reply(w, http.StatusInternalServerError, TypeError, ErrorPayload{Error: err.Error()})
			return
		}
		s.reply(w, http.StatusOK, TypeVerificationKey, VerificationKeyPayload{Key: vk})

	case TypeProve:
		var payload ProvePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil || payload.Witness == nil {
			s.reply(w, http.StatusBadRequest, TypeError, ErrorPayload{Error: "invalid prove payload"})
			return
		}
		proof, err := s.prover.Prove(r.Context(), payload.Witness)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, protocol.ErrInvalidWitness) {
				status = http.StatusUnprocessableEntity
			}
			s.log.Error().Err(err).Str("client", msg.SenderID).Msg("proof generation failed")
			s.reply(w, status, TypeError, ErrorPayload{Error: err.Error()})
			return
		}
		s.reply(w, http.StatusOK, TypeProof, ProofPayload{Proof: proof.Bytes, Inputs: proof.Inputs.Bytes()})

	default:
		s.reply(w, http.StatusBadRequest, TypeError, ErrorPayload{Error: "unknown message type " + msg.Type})
	}
}

func (s *Server) reply(w http.ResponseWriter, status int, typ string, payload any) {
	msg, err := newMessage(typ, serverID, payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(msg); err != nil {
		s.log.Error().Err(err).Msg("failed to write reply")
	}
}
