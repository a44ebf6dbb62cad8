package ws

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/log"
	"github.com/space-operator/spo-go/pkg/value"
)

type (
	// Signer signs transactions on behalf of one or more keys. The returned
	// transaction may carry a different message than the one it was given
	Signer interface {
		SignTransaction(
			ctx context.Context, tx *api.Transaction,
		) (*api.Transaction, error)
	}

	// SignatureSubmitter delivers a signature back to the service
	SignatureSubmitter interface {
		SubmitSignature(
			ctx context.Context, params api.SubmitSignatureParams,
		) (*api.SubmitSignatureOutput, error)
	}
)

// SignAndSubmitSignature answers a signature request. pubkey must be the
// request's target key, otherwise nothing is signed or sent
func (c *Conn) SignAndSubmitSignature(
	ctx context.Context, req *api.SignatureRequest, pubkey value.PublicKey,
	s Signer,
) error {
	params, err := PrepareSignature(ctx, req, pubkey, s)
	if err != nil {
		return err
	}
	if c.submitter == nil {
		return ErrNoSubmitter
	}

	out, err := c.submitter.SubmitSignature(ctx, *params)
	if err != nil {
		return err
	}
	if !out.Success {
		return fmt.Errorf("%w: request %d", ErrSubmitRejected, req.ID)
	}

	c.logger.Info("Signature submitted",
		log.PublicKey(pubkey),
		log.FlowRunID(req.FlowRunID))
	return nil
}

// PrepareSignature signs the transaction described by req and builds the
// submission. NewMsg is set only when the signer changed the message
func PrepareSignature(
	ctx context.Context, req *api.SignatureRequest, pubkey value.PublicKey,
	s Signer,
) (*api.SubmitSignatureParams, error) {
	if pubkey != req.PublicKey {
		return nil, fmt.Errorf("%w: got %s, request is for %s",
			ErrPublicKeyMismatch, pubkey, req.PublicKey)
	}

	tx, err := req.BuildTransaction()
	if err != nil {
		return nil, err
	}
	before := tx.SerializeMessage()

	signed, err := s.SignTransaction(ctx, tx)
	if err != nil {
		return nil, err
	}
	if signed == nil {
		return nil, ErrSignatureNull
	}
	sig, ok := signed.SignatureFor(req.PublicKey)
	if !ok {
		return nil, ErrSignatureNull
	}

	res := &api.SubmitSignatureParams{
		ID:        req.ID,
		Signature: sig.String(),
	}
	if after := signed.SerializeMessage(); !bytes.Equal(before, after) {
		res.NewMsg = base64.StdEncoding.EncodeToString(after)
	}
	return res, nil
}
