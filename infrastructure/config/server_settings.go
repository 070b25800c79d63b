package config

import (
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"duet/application"
	"duet/domain/identity"
)

// serverSettingsWire is ServerSettings' TOML shape.
type serverSettingsWire struct {
	KeyPairPKCS8  string `toml:"key_pair_pkcs8"`
	ListenOn      string `toml:"listen_on"`
	PublicAddress string `toml:"public_address"`
}

func toServerSettingsWire(s application.ServerSettings) (serverSettingsWire, error) {
	der, err := s.Identity.ToPKCS8()
	if err != nil {
		return serverSettingsWire{}, err
	}
	return serverSettingsWire{
		KeyPairPKCS8:  hex.EncodeToString(der),
		ListenOn:      s.ListenOn.String(),
		PublicAddress: s.PublicAddress.String(),
	}, nil
}

func fromServerSettingsWire(w serverSettingsWire) (application.ServerSettings, error) {
	der, err := hex.DecodeString(w.KeyPairPKCS8)
	if err != nil {
		return application.ServerSettings{}, fmt.Errorf("decode key_pair_pkcs8: %w", err)
	}
	kp, err := identity.KeyPairFromPKCS8(der)
	if err != nil {
		return application.ServerSettings{}, err
	}
	listenOn, err := netip.ParseAddrPort(w.ListenOn)
	if err != nil {
		return application.ServerSettings{}, fmt.Errorf("parse listen_on %q: %w", w.ListenOn, err)
	}
	publicAddress, err := netip.ParseAddr(w.PublicAddress)
	if err != nil {
		return application.ServerSettings{}, fmt.Errorf("parse public_address %q: %w", w.PublicAddress, err)
	}
	return application.ServerSettings{
		Identity:      kp,
		ListenOn:      listenOn,
		PublicAddress: publicAddress,
	}, nil
}

// ServerSettingsManager implements
// application.ConfigManager[ServerSettings] over a TOML file. A missing
// file is materialized with a freshly generated key pair and a listener
// bound to all interfaces on the default port.
type ServerSettingsManager struct {
	resolver Resolver
}

var _ application.ConfigManager[application.ServerSettings] = (*ServerSettingsManager)(nil)

// DefaultListenPort is the coordination server's default QUIC port.
const DefaultListenPort = 7443

// NewServerSettingsManager builds a manager reading/writing through resolver.
func NewServerSettingsManager(resolver Resolver) *ServerSettingsManager {
	return &ServerSettingsManager{resolver: resolver}
}

// Configuration reads the server's settings file, generating and
// persisting a fresh identity and a default listen address on first run.
func (m *ServerSettingsManager) Configuration() (application.ServerSettings, error) {
	path, err := m.resolver.Resolve()
	if err != nil {
		return application.ServerSettings{}, err
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		kp, err := identity.Generate()
		if err != nil {
			return application.ServerSettings{}, err
		}
		fresh := application.ServerSettings{
			Identity:      kp,
			ListenOn:      netip.AddrPortFrom(netip.IPv4Unspecified(), DefaultListenPort),
			PublicAddress: netip.IPv4Unspecified(),
		}
		if err := m.Save(fresh); err != nil {
			return application.ServerSettings{}, err
		}
		return fresh, nil
	}
	if err != nil {
		return application.ServerSettings{}, fmt.Errorf("read %s: %w", path, err)
	}

	var wire serverSettingsWire
	if err := toml.Unmarshal(raw, &wire); err != nil {
		return application.ServerSettings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fromServerSettingsWire(wire)
}

// Save writes s to the resolved settings file.
func (m *ServerSettingsManager) Save(s application.ServerSettings) error {
	path, err := m.resolver.Resolve()
	if err != nil {
		return err
	}
	wire, err := toServerSettingsWire(s)
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(wire)
	if err != nil {
		return fmt.Errorf("encode server settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// NewServerSettingsResolver resolves the server's settings file, honoring
// an explicit override (e.g. a --config flag) before falling back to
// XDG_CONFIG_HOME.
func NewServerSettingsResolver(override string) Resolver {
	fallback := defaultResolver{baseDirFunc: configBaseDir, fileName: "server.toml"}
	return NewOverrideResolver(override, fallback)
}
