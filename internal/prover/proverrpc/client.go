package proverrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/HamzaZF/zeth-client/internal/protocol"
)

var (
	ErrRateLimited = errors.New("proverrpc: rate limited")
	ErrRemote      = errors.New("proverrpc: remote prover error")
)

// Client is a protocol.Prover backed by a remote Server.
type Client struct {
	id   string
	http *resty.Client
}

var _ protocol.Prover = (*Client)(nil)

// NewClient returns a client for the server at baseURL, identifying itself as
// id for rate limiting.
func NewClient(baseURL, id string) *Client {
	return &Client{
		id: id,
		http: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(10 * time.Minute),
	}
}

func (c *Client) call(ctx context.Context, typ string, payload any, want string, out any) error {
	req, err := newMessage(typ, c.id, payload)
	if err != nil {
		return err
	}
	var reply Message
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&reply).
		SetError(&reply).
		Post("/message")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("proverrpc: %w", err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return ErrRateLimited
	}
	if resp.IsError() || reply.Type == TypeError {
		var e ErrorPayload
		_ = json.Unmarshal(reply.Payload, &e)
		return fmt.Errorf("%w: %s: %s", ErrRemote, resp.Status(), e.Error)
	}
	if reply.Type != want {
		return fmt.Errorf("%w: unexpected reply type %q", ErrRemote, reply.Type)
	}
	return json.Unmarshal(reply.Payload, out)
}

func (c *Client) VerificationKey(ctx context.Context) ([]byte, error) {
	var out VerificationKeyPayload
	if err := c.call(ctx, TypeVerificationKey, nil, TypeVerificationKey, &out); err != nil {
		return nil, err
	}
	return out.Key, nil
}

func (c *Client) Prove(ctx context.Context, w *protocol.Witness) (*protocol.Proof, error) {
	var out ProofPayload
	if err := c.call(ctx, TypeProve, ProvePayload{Witness: w}, TypeProof, &out); err != nil {
		return nil, err
	}
	inputs, err := protocol.ParsePublicInputs(out.Inputs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	return &protocol.Proof{Bytes: out.Proof, Inputs: inputs}, nil
}
