// Package claims implements the lattice's constrained JWT dialect: signed
// identity tokens for operators, accounts, hosts, components and providers,
// built on Ed25519 signatures.
package claims

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// KeyKind identifies the class of public key a KeyPair represents. The
// lattice never mixes kinds: a host id is always a server-class key, a
// component id is always a module-class key, and so on.
type KeyKind string

const (
	KeyKindOperator  KeyKind = "operator"
	KeyKindAccount   KeyKind = "account"
	KeyKindServer    KeyKind = "server" // hosts/clusters
	KeyKindModule    KeyKind = "module" // components
	KeyKindService   KeyKind = "service" // providers
)

// KeyPair is an Ed25519 keypair tagged with the kind of identifier it
// represents. The public key, base64-std encoded, is used verbatim as the
// wire identifier (host id, component id, provider id, ...).
type KeyPair struct {
	Kind    KeyKind
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// NewKeyPair generates a fresh Ed25519 keypair of the given kind.
func NewKeyPair(kind KeyKind) (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &KeyPair{Kind: kind, Public: pub, Private: priv}, nil
}

// PublicKeyString returns the wire identifier for this keypair: the
// standard base64 encoding of the raw 32-byte Ed25519 public key.
func (k *KeyPair) PublicKeyString() string {
	return base64.StdEncoding.EncodeToString(k.Public)
}

// ParsePublicKey decodes a wire identifier back into raw Ed25519 public key
// bytes, validating its length.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key %q: %w", s, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key %q: expected %d bytes, found %d", s, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}
