package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/space-operator/spo-go/pkg/value"
)

type (
	// SignatureRequest asks the client to obtain a signature for a pending
	// transaction from a specific key
	SignatureRequest struct {
		ID         int64             `json:"id"`
		Time       string            `json:"time,omitempty"`
		PublicKey  value.PublicKey   `json:"pubkey"`
		Message    []byte            `json:"message"`
		Timeout    float64           `json:"timeout,omitempty"`
		FlowRunID  FlowRunID         `json:"flow_run_id,omitempty"`
		Signatures []PresetSignature `json:"signatures,omitempty"`
	}

	// PresetSignature is a signature already collected for the transaction
	PresetSignature struct {
		PublicKey value.PublicKey `json:"pubkey"`
		Signature value.Signature `json:"signature"`
	}

	// Transaction is a serialized message together with its signer slots
	Transaction struct {
		Message    []byte
		Signatures []KeySignature
	}

	// KeySignature is one signer slot of a Transaction. Signature is nil
	// until the key has signed
	KeySignature struct {
		Signature *value.Signature
		PublicKey value.PublicKey
	}

	// SubmitSignatureParams reports a signature back to the service. NewMsg
	// is set only when signing changed the transaction message
	SubmitSignatureParams struct {
		ID        int64  `json:"id"`
		Signature string `json:"signature"`
		NewMsg    string `json:"new_msg,omitempty"`
	}

	// SubmitSignatureOutput is the service reply to a submission
	SubmitSignatureOutput struct {
		Success bool `json:"success"`
	}
)

var (
	ErrInvalidSignatureRequest = errors.New("invalid signature request")
	ErrEmptyMessage            = errors.New("transaction message is empty")
)

// UnmarshalJSON validates the decoded request
func (r *SignatureRequest) UnmarshalJSON(data []byte) error {
	type wire SignatureRequest
	var res wire
	if err := json.Unmarshal(data, &res); err != nil {
		return err
	}
	if res.PublicKey.IsZero() {
		return fmt.Errorf("%w: missing pubkey", ErrInvalidSignatureRequest)
	}
	if len(res.Message) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSignatureRequest, ErrEmptyMessage)
	}
	*r = SignatureRequest(res)
	return nil
}

// BuildTransaction constructs the unsigned transaction described by the
// request. Preset signatures are carried over and the requested key always
// has a slot
func (r *SignatureRequest) BuildTransaction() (*Transaction, error) {
	if len(r.Message) == 0 {
		return nil, ErrEmptyMessage
	}
	tx := NewTransaction(r.Message)
	for _, s := range r.Signatures {
		tx.SetSignature(s.PublicKey, s.Signature)
	}
	tx.AddSigner(r.PublicKey)
	return tx, nil
}

// NewTransaction creates a transaction over a copy of msg with empty slots
// for the given signers
func NewTransaction(msg []byte, signers ...value.PublicKey) *Transaction {
	tx := &Transaction{Message: bytes.Clone(msg)}
	for _, pk := range signers {
		tx.AddSigner(pk)
	}
	return tx
}

// SerializeMessage returns a copy of the message bytes that signers sign
func (t *Transaction) SerializeMessage() []byte {
	return bytes.Clone(t.Message)
}

// AddSigner adds an empty slot for pk unless it already has one
func (t *Transaction) AddSigner(pk value.PublicKey) {
	if t.slot(pk) >= 0 {
		return
	}
	t.Signatures = append(t.Signatures, KeySignature{PublicKey: pk})
}

// SetSignature records sig in the slot for pk, adding the slot if needed
func (t *Transaction) SetSignature(pk value.PublicKey, sig value.Signature) {
	if i := t.slot(pk); i >= 0 {
		t.Signatures[i].Signature = &sig
		return
	}
	t.Signatures = append(t.Signatures, KeySignature{
		PublicKey: pk,
		Signature: &sig,
	})
}

// SignatureFor returns the signature recorded for pk
func (t *Transaction) SignatureFor(pk value.PublicKey) (value.Signature, bool) {
	i := t.slot(pk)
	if i < 0 || t.Signatures[i].Signature == nil {
		return value.Signature{}, false
	}
	return *t.Signatures[i].Signature, true
}

// Clone returns a deep copy of the transaction
func (t *Transaction) Clone() *Transaction {
	res := &Transaction{
		Message:    bytes.Clone(t.Message),
		Signatures: make([]KeySignature, len(t.Signatures)),
	}
	for i, s := range t.Signatures {
		res.Signatures[i].PublicKey = s.PublicKey
		if s.Signature != nil {
			sig := *s.Signature
			res.Signatures[i].Signature = &sig
		}
	}
	return res
}

func (t *Transaction) slot(pk value.PublicKey) int {
	for i, s := range t.Signatures {
		if s.PublicKey == pk {
			return i
		}
	}
	return -1
}
