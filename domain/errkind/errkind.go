// Package errkind enumerates the sentinel error kinds shared by every layer
// of duet, per §7 of the specification. Call sites wrap one of these with
// fmt.Errorf("...: %w", ...) and callers compare with errors.Is.
package errkind

import "errors"

// Transport / certificate errors.
var (
	ErrIntermediatesNotEmpty = errors.New("intermediate certificates present")
	ErrInvalidCertificate    = errors.New("invalid certificate")
	ErrKeyNotPermitted       = errors.New("peer key not permitted")
	ErrCertificateData       = errors.New("could not recover peer public key from connection")
	ErrConnectionConfig      = errors.New("invalid connection configuration")
	ErrConnection            = errors.New("connection failed")
)

// Wire-codec errors.
var (
	ErrSerde         = errors.New("serialization failure")
	ErrTooLarge      = errors.New("message exceeds maximum size")
	ErrFrameTooShort = errors.New("frame shorter than minimum size")
	ErrUnexpectedEOF = errors.New("unexpected end of stream")
	ErrRead          = errors.New("read failure")
	ErrWrite         = errors.New("write failure")
)

// Cryptography errors.
var (
	ErrEncryption = errors.New("encryption failed")
	ErrDecryption = errors.New("decryption failed")
)

// Server-reported errors.
var (
	ErrInvalidPairingCode = errors.New("invalid pairing code")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrNoData             = errors.New("no data")
	ErrServerGeneric      = errors.New("server error")
)

// Peer-protocol errors.
var (
	ErrPeerClosedConnection      = errors.New("peer closed connection")
	ErrPeerNoResponse            = errors.New("peer did not respond within retry budget")
	ErrUnauthorisedConnectionReq = errors.New("unauthorised connection request")
	ErrFailedConnection          = errors.New("failed to establish connection")
	ErrIncorrectPeer             = errors.New("connected to unexpected peer")
	ErrMaliciousFileName         = errors.New("malicious file name")
	ErrNotFoundOnPeer            = errors.New("not found on peer")
	ErrMissedSynchronisation     = errors.New("missed scheduled synchronisation time")
)

// Local I/O and configuration errors.
var (
	ErrIo            = errors.New("i/o error")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotDirectory  = errors.New("not a directory")
	ErrUtf8          = errors.New("invalid utf-8")
	ErrConfigRead    = errors.New("failed to read configuration")
	ErrConfigWrite   = errors.New("failed to write configuration")
)

// User-flow errors.
var (
	ErrInvalidWords  = errors.New("invalid mnemonic words")
	ErrUserCancelled = errors.New("user cancelled")
	ErrPeerNotSet    = errors.New("no paired peer configured")
)
