// Package identity holds the long-lived ed25519 key pair that names a peer.
//
// Public keys double as the peer's protocol identity: the coordination
// server, the TLS layer, and the sync engine all compare PublicKey values by
// raw bytes rather than any certificate-issued name.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"fmt"
)

// PublicKey is a raw 32-byte ed25519 public key.
type PublicKey [ed25519.PublicKeySize]byte

// Equal reports whether two public keys are byte-identical.
func (k PublicKey) Equal(other PublicKey) bool {
	return k == other
}

// String renders the key as lowercase hex, for logging and pairing-code UIs.
func (k PublicKey) String() string {
	return fmt.Sprintf("%x", k[:])
}

// Bytes returns the key's raw 32 bytes.
func (k PublicKey) Bytes() []byte {
	return k[:]
}

// PublicKeyFromBytes copies exactly 32 bytes into a PublicKey.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	var k PublicKey
	if len(b) != ed25519.PublicKeySize {
		return k, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// KeyPair is a peer's long-lived ed25519 identity.
type KeyPair struct {
	Public  PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a fresh random key pair.
func Generate() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	public, err := PublicKeyFromBytes(pub)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: public, Private: priv}, nil
}

// ToPKCS8 encodes the private key as a PKCS8 OneAsymmetricKey DER document
// (RFC 8410 §7) — the byte layout data.toml stores private keys in, and the
// layout crypto/tls.X509KeyPair / x509.ParsePKCS8PrivateKey expect.
func (kp KeyPair) ToPKCS8() ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.Private)
	if err != nil {
		return nil, fmt.Errorf("marshal pkcs8 private key: %w", err)
	}
	return der, nil
}

// KeyPairFromPKCS8 reverses ToPKCS8.
func KeyPairFromPKCS8(der []byte) (KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return KeyPair{}, fmt.Errorf("parse pkcs8 private key: %w", err)
	}
	priv, ok := key.(ed25519.PrivateKey)
	if !ok {
		return KeyPair{}, fmt.Errorf("pkcs8 key is not ed25519")
	}
	public, err := PublicKeyFromBytes(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: public, Private: priv}, nil
}
