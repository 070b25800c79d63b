package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"duet/application"
	"duet/domain/identity"
)

// clientIdentityWire is ClientIdentity's TOML shape: the PKCS8 private key
// and optional peer public key are hex-encoded, since TOML has no native
// byte-string type.
type clientIdentityWire struct {
	KeyPairPKCS8 string `toml:"key_pair_pkcs8"`
	PeerKey      string `toml:"peer_key,omitempty"`
}

func toClientIdentityWire(id application.ClientIdentity) (clientIdentityWire, error) {
	der, err := id.KeyPair.ToPKCS8()
	if err != nil {
		return clientIdentityWire{}, err
	}
	wire := clientIdentityWire{KeyPairPKCS8: hex.EncodeToString(der)}
	if id.PeerKey != nil {
		wire.PeerKey = hex.EncodeToString(id.PeerKey.Bytes())
	}
	return wire, nil
}

func fromClientIdentityWire(w clientIdentityWire) (application.ClientIdentity, error) {
	der, err := hex.DecodeString(w.KeyPairPKCS8)
	if err != nil {
		return application.ClientIdentity{}, fmt.Errorf("decode key_pair_pkcs8: %w", err)
	}
	kp, err := identity.KeyPairFromPKCS8(der)
	if err != nil {
		return application.ClientIdentity{}, err
	}

	id := application.ClientIdentity{KeyPair: kp}
	if w.PeerKey != "" {
		raw, err := hex.DecodeString(w.PeerKey)
		if err != nil {
			return application.ClientIdentity{}, fmt.Errorf("decode peer_key: %w", err)
		}
		peer, err := identity.PublicKeyFromBytes(raw)
		if err != nil {
			return application.ClientIdentity{}, err
		}
		id.PeerKey = &peer
	}
	return id, nil
}

// ClientIdentityManager implements application.ConfigManager[ClientIdentity]
// over data.toml. A missing file is materialized with a freshly generated
// key pair and no paired peer, the state of a device that has never run
// setup before.
type ClientIdentityManager struct {
	resolver Resolver
}

var _ application.ConfigManager[application.ClientIdentity] = (*ClientIdentityManager)(nil)

// NewClientIdentityManager builds a manager reading/writing through resolver.
func NewClientIdentityManager(resolver Resolver) *ClientIdentityManager {
	return &ClientIdentityManager{resolver: resolver}
}

// Configuration reads data.toml, generating and persisting a fresh key pair
// on first access.
func (m *ClientIdentityManager) Configuration() (application.ClientIdentity, error) {
	path, err := m.resolver.Resolve()
	if err != nil {
		return application.ClientIdentity{}, err
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		kp, err := identity.Generate()
		if err != nil {
			return application.ClientIdentity{}, err
		}
		fresh := application.ClientIdentity{KeyPair: kp}
		if err := m.Save(fresh); err != nil {
			return application.ClientIdentity{}, err
		}
		return fresh, nil
	}
	if err != nil {
		return application.ClientIdentity{}, fmt.Errorf("read %s: %w", path, err)
	}

	var wire clientIdentityWire
	if err := toml.Unmarshal(raw, &wire); err != nil {
		return application.ClientIdentity{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fromClientIdentityWire(wire)
}

// Save writes id to data.toml with owner-only permissions, since it holds
// private key material.
func (m *ClientIdentityManager) Save(id application.ClientIdentity) error {
	path, err := m.resolver.Resolve()
	if err != nil {
		return err
	}
	wire, err := toClientIdentityWire(id)
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode client identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
