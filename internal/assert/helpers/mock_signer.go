package helpers

import (
	"context"
	"sync"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/value"
)

// MockSigner is a scripted signer. By default it records a fixed signature
// for Key and leaves the message untouched
type MockSigner struct {
	err        error
	newMessage []byte
	calls      []*api.Transaction
	key        value.PublicKey
	signature  value.Signature
	omit       bool
	mu         sync.Mutex
}

// NewMockSigner creates a signer that signs for key with sig
func NewMockSigner(key value.PublicKey, sig value.Signature) *MockSigner {
	return &MockSigner{
		key:       key,
		signature: sig,
	}
}

// SignTransaction records the call and returns the scripted result
func (m *MockSigner) SignTransaction(
	_ context.Context, tx *api.Transaction,
) (*api.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, tx.Clone())
	if m.err != nil {
		return nil, m.err
	}

	res := tx.Clone()
	if m.newMessage != nil {
		res.Message = append([]byte(nil), m.newMessage...)
	}
	if !m.omit {
		res.SetSignature(m.key, m.signature)
	}
	return res, nil
}

// SetError makes every call fail with err
func (m *MockSigner) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetNewMessage makes the signer replace the transaction message
func (m *MockSigner) SetNewMessage(msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newMessage = msg
}

// OmitSignature makes the signer return without signing
func (m *MockSigner) OmitSignature() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.omit = true
}

// Calls returns copies of the transactions the signer was given
func (m *MockSigner) Calls() []*api.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*api.Transaction(nil), m.calls...)
}
