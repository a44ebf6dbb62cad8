package signer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudflare/circl/sign/ed25519"
	"github.com/mr-tron/base58"

	"github.com/space-operator/spo-go/pkg/api"
	"github.com/space-operator/spo-go/pkg/value"
)

// Keypair signs transactions locally with an ed25519 key
type Keypair struct {
	private ed25519.PrivateKey
	public  value.PublicKey
}

var (
	ErrInvalidKeypair = errors.New("invalid keypair")
	ErrKeyMismatch    = errors.New("public key does not match seed")
)

var _ value.KeypairLike = (*Keypair)(nil)

// Generate creates a fresh keypair from rand
func Generate(rand io.Reader) (*Keypair, error) {
	_, priv, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, err
	}
	return fromPrivate(priv), nil
}

// FromSeed derives a keypair from a 32-byte seed
func FromSeed(seed [value.SeedSize]byte) *Keypair {
	return fromPrivate(ed25519.NewKeyFromSeed(seed[:]))
}

// FromKeypair derives a keypair from its wire form, checking that the
// carried public key belongs to the seed
func FromKeypair(k value.Keypair) (*Keypair, error) {
	res := FromSeed(k.Seed)
	if res.public != k.Public {
		return nil, ErrKeyMismatch
	}
	return res, nil
}

// FromBase58 parses the base58 form of seed followed by public key, as
// produced by wallet exports
func FromBase58(secret string) (*Keypair, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeypair, err)
	}
	if len(raw) != value.SeedSize+value.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKeypair, len(raw))
	}
	var k value.Keypair
	copy(k.Seed[:], raw[:value.SeedSize])
	copy(k.Public[:], raw[value.SeedSize:])
	return FromKeypair(k)
}

func fromPrivate(priv ed25519.PrivateKey) *Keypair {
	res := &Keypair{private: priv}
	copy(res.public[:], priv[value.SeedSize:])
	return res
}

// PublicKey returns the signing key's public half
func (k *Keypair) PublicKey() value.PublicKey {
	return k.public
}

// ToKeypair implements value.KeypairLike
func (k *Keypair) ToKeypair() value.Keypair {
	var res value.Keypair
	copy(res.Seed[:], k.private.Seed())
	res.Public = k.public
	return res
}

// Sign produces a detached signature over msg
func (k *Keypair) Sign(msg []byte) value.Signature {
	var res value.Signature
	copy(res[:], ed25519.Sign(k.private, msg))
	return res
}

// SignTransaction signs a copy of tx and records the signature in the slot
// for this key. The message itself is left untouched
func (k *Keypair) SignTransaction(
	_ context.Context, tx *api.Transaction,
) (*api.Transaction, error) {
	if len(tx.Message) == 0 {
		return nil, api.ErrEmptyMessage
	}
	res := tx.Clone()
	res.SetSignature(k.public, k.Sign(res.Message))
	return res, nil
}

// Verify reports whether sig is a valid signature of msg by pk
func Verify(pk value.PublicKey, msg []byte, sig value.Signature) bool {
	return ed25519.Verify(pk[:], msg, sig[:])
}
