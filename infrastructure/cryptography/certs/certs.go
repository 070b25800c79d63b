// Package certs generates the self-signed ed25519 certificates peers present
// to each other over QUIC, and the custom verifier that replaces the usual
// CA trust chain with "does the peer's public key equal the one I expect"
// (§4.1).
package certs

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"sync/atomic"
	"time"

	"duet/domain/errkind"
	"duet/domain/identity"
)

// certValidity is intentionally generous: the cert's only job is to carry a
// self-signed ed25519 key over TLS, not to expire on a schedule.
const certValidity = 100 * 365 * 24 * time.Hour

// genCert builds a self-signed ed25519 certificate binding publicAddress as
// an IP SAN, signed by keyPair's private key.
func genCert(publicAddress net.IP, keyPair identity.KeyPair) (tls.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("generate serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "duet self signed cert"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(certValidity),
		IPAddresses:  []net.IP{publicAddress},
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}

	pub := ed25519.PublicKey(keyPair.Public.Bytes())
	der, err := x509.CreateCertificate(rand.Reader, template, template, pub, keyPair.Private)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("create certificate: %w", err)
	}

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  keyPair.Private,
	}, nil
}

// verifier implements the "peer key equals expected key" certificate check
// shared by both send-side and receive-side TLS configs. expectedKey is nil
// for "accept any self-signed peer", matching the coordination server's
// handshake with not-yet-paired devices.
type verifier struct {
	expectedKey *identity.PublicKey
}

// verify validates a raw DER certificate chain against the no-CA trust
// model: it must be a single self-signed leaf with a valid ed25519
// signature, and (if expectedKey is set) its subject key must equal it.
func (v verifier) verify(rawCerts [][]byte) (identity.PublicKey, error) {
	if len(rawCerts) != 1 {
		return identity.PublicKey{}, errkind.ErrIntermediatesNotEmpty
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("%w: %v", errkind.ErrInvalidCertificate, err)
	}

	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return identity.PublicKey{}, errkind.ErrInvalidCertificate
	}

	if err := cert.CheckSignature(cert.SignatureAlgorithm, cert.RawTBSCertificate, cert.Signature); err != nil {
		return identity.PublicKey{}, fmt.Errorf("%w: %v", errkind.ErrInvalidCertificate, err)
	}

	peerKey, err := identity.PublicKeyFromBytes(pub)
	if err != nil {
		return identity.PublicKey{}, fmt.Errorf("%w: %v", errkind.ErrInvalidCertificate, err)
	}

	if v.expectedKey != nil && !peerKey.Equal(*v.expectedKey) {
		return identity.PublicKey{}, errkind.ErrKeyNotPermitted
	}

	return peerKey, nil
}

// GenConfigs builds the paired tls.Config values used to dial out (send) and
// listen (recv) on the same identity and expected-peer constraint.
func GenConfigs(publicAddress net.IP, keyPair identity.KeyPair, expectedPeer *identity.PublicKey) (send, recv *tls.Config, err error) {
	cert, err := genCert(publicAddress, keyPair)
	if err != nil {
		return nil, nil, err
	}

	v := verifier{expectedKey: expectedPeer}

	send = &tls.Config{
		Certificates:          []tls.Certificate{cert},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyFunc(v),
		NextProtos:            []string{"duet"},
	}
	recv = &tls.Config{
		Certificates:          []tls.Certificate{cert},
		ClientAuth:            tls.RequireAnyClientCert,
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyFunc(v),
		NextProtos:            []string{"duet"},
	}
	return send, recv, nil
}

func verifyFunc(v verifier) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		_, err := v.verify(rawCerts)
		return err
	}
}

// DynamicPeer holds a swappable expected-peer pin shared by a listener's
// verify callback, so a long-lived Listener can narrow which peer it will
// accept (§4.8 step 5, pinning down to the rendezvous counterpart) without
// tearing down and rebuilding its tls.Config.
type DynamicPeer struct {
	key atomic.Pointer[identity.PublicKey]
}

// NewDynamicPeer builds a DynamicPeer, optionally starting pinned to
// initial (nil meaning "accept any well-formed self-signed peer").
func NewDynamicPeer(initial *identity.PublicKey) *DynamicPeer {
	d := &DynamicPeer{}
	d.Set(initial)
	return d
}

// Set repins the expected peer, or clears the pin when key is nil.
func (d *DynamicPeer) Set(key *identity.PublicKey) {
	d.key.Store(key)
}

func (d *DynamicPeer) verify(rawCerts [][]byte) (identity.PublicKey, error) {
	return verifier{expectedKey: d.key.Load()}.verify(rawCerts)
}

// GenDynamicConfigs is GenConfigs with the recv side's expected-peer check
// bound to peer instead of a fixed value, so SetExpectedPeer can retarget a
// running Listener.
func GenDynamicConfigs(publicAddress net.IP, keyPair identity.KeyPair, peer *DynamicPeer) (send, recv *tls.Config, err error) {
	cert, err := genCert(publicAddress, keyPair)
	if err != nil {
		return nil, nil, err
	}

	recv = &tls.Config{
		Certificates:       []tls.Certificate{cert},
		ClientAuth:         tls.RequireAnyClientCert,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := peer.verify(rawCerts)
			return err
		},
		NextProtos: []string{"duet"},
	}
	send = &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			_, err := peer.verify(rawCerts)
			return err
		},
		NextProtos: []string{"duet"},
	}
	return send, recv, nil
}

// PeerKey recovers the public key carried by an already-verified TLS
// connection state. It must only be called once the handshake completed
// without error; it does not itself re-validate the chain.
func PeerKey(state tls.ConnectionState) (identity.PublicKey, error) {
	if len(state.PeerCertificates) != 1 {
		return identity.PublicKey{}, errkind.ErrCertificateData
	}
	pub, ok := state.PeerCertificates[0].PublicKey.(ed25519.PublicKey)
	if !ok {
		return identity.PublicKey{}, errkind.ErrCertificateData
	}
	return identity.PublicKeyFromBytes(pub)
}
