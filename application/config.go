package application

import (
	"net/netip"
	"time"

	"duet/domain/identity"
)

// RetryPolicy is a {tries, delay} pair, the shape §5 names for both the
// register_response and request_connection retry loops.
type RetryPolicy struct {
	Tries int
	Delay time.Duration
}

// ClientSettings is config.toml: everything about how a paired device talks
// to the coordination server and to its peer except key material, following
// §6's explicit config.toml/data.toml split.
type ClientSettings struct {
	Servers                []string
	BackupPath             string
	PeerStoragePath        string
	ScheduleAhead          time.Duration
	RegisterResponseRetry  RetryPolicy
	RequestConnectionRetry RetryPolicy
}

// ClientIdentity is data.toml: the long-lived key pair and, once paired,
// the other device's public key.
type ClientIdentity struct {
	KeyPair identity.KeyPair
	PeerKey *identity.PublicKey
}

// ServerSettings is the coordination server's own persisted configuration:
// its long-lived identity, the address it listens on, and the public
// address it binds into its self-signed certificate's SAN.
type ServerSettings struct {
	Identity      identity.KeyPair
	ListenOn      netip.AddrPort
	PublicAddress netip.Addr
}

// ConfigManager resolves, reads and writes a configuration value of type T,
// mirroring the teacher's configuration.Manager generic pattern.
type ConfigManager[T any] interface {
	Configuration() (T, error)
	Save(cfg T) error
}
