package value

import (
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
)

type (
	// PublicKey is a 32-byte account key, rendered as base58 on the wire
	PublicKey [PublicKeySize]byte

	// Signature is a 64-byte detached signature, rendered as base58 on the
	// wire
	Signature [SignatureSize]byte

	// Keypair pairs an ed25519 seed with its public key. On the wire it is
	// carried as a Signature-tagged value holding seed followed by public key
	Keypair struct {
		Seed   [SeedSize]byte
		Public PublicKey
	}

	// PublicKeyLike is implemented by types that can present themselves as
	// an account public key
	PublicKeyLike interface {
		ToPublicKey() PublicKey
	}

	// KeypairLike is implemented by types that hold signing key material
	KeypairLike interface {
		ToKeypair() Keypair
	}
)

const (
	PublicKeySize = 32
	SignatureSize = 64
	SeedSize      = 32
)

var (
	ErrInvalidPublicKey = errors.New("invalid public key")
	ErrInvalidSignature = errors.New("invalid signature")
)

var (
	_ PublicKeyLike = PublicKey{}
	_ KeypairLike   = Keypair{}
)

// ParsePublicKey decodes a base58 public key
func ParsePublicKey(s string) (PublicKey, error) {
	var res PublicKey
	raw, err := base58.Decode(s)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidPublicKey, err)
	}
	if len(raw) != PublicKeySize {
		return res, fmt.Errorf("%w: %d bytes", ErrInvalidPublicKey, len(raw))
	}
	copy(res[:], raw)
	return res, nil
}

// ParseSignature decodes a base58 signature
func ParseSignature(s string) (Signature, error) {
	var res Signature
	raw, err := base58.Decode(s)
	if err != nil {
		return res, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if len(raw) != SignatureSize {
		return res, fmt.Errorf("%w: %d bytes", ErrInvalidSignature, len(raw))
	}
	copy(res[:], raw)
	return res, nil
}

// String returns the base58 form of the key
func (k PublicKey) String() string {
	return base58.Encode(k[:])
}

// ToPublicKey implements PublicKeyLike
func (k PublicKey) ToPublicKey() PublicKey {
	return k
}

// IsZero reports whether the key is all zeroes
func (k PublicKey) IsZero() bool {
	return k == PublicKey{}
}

// MarshalText renders the key as base58
func (k PublicKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses a base58 key
func (k *PublicKey) UnmarshalText(text []byte) error {
	res, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = res
	return nil
}

// String returns the base58 form of the signature
func (s Signature) String() string {
	return base58.Encode(s[:])
}

// MarshalText renders the signature as base58
func (s Signature) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a base58 signature
func (s *Signature) UnmarshalText(text []byte) error {
	res, err := ParseSignature(string(text))
	if err != nil {
		return err
	}
	*s = res
	return nil
}

// Bytes returns seed followed by public key, the 64-byte layout used by
// ed25519 private keys
func (k Keypair) Bytes() []byte {
	res := make([]byte, 0, SeedSize+PublicKeySize)
	res = append(res, k.Seed[:]...)
	return append(res, k.Public[:]...)
}

// ToKeypair implements KeypairLike
func (k Keypair) ToKeypair() Keypair {
	return k
}
