package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"duet/application"
)

// clientSettingsWire is ClientSettings' TOML shape. Durations are stored as
// Go duration strings ("72h", "5m") rather than bare integers, so the file
// stays human-editable.
type clientSettingsWire struct {
	Servers                []string  `toml:"servers"`
	BackupPath             string    `toml:"backup_path"`
	PeerStoragePath        string    `toml:"peer_storage_path"`
	ScheduleAhead          string    `toml:"schedule_ahead"`
	RegisterResponseRetry  retryWire `toml:"register_response_retry"`
	RequestConnectionRetry retryWire `toml:"request_connection_retry"`
}

type retryWire struct {
	Tries int    `toml:"tries"`
	Delay string `toml:"delay"`
}

func toRetryWire(p application.RetryPolicy) retryWire {
	return retryWire{Tries: p.Tries, Delay: p.Delay.String()}
}

func fromRetryWire(w retryWire) (application.RetryPolicy, error) {
	delay, err := time.ParseDuration(w.Delay)
	if err != nil {
		return application.RetryPolicy{}, fmt.Errorf("parse retry delay %q: %w", w.Delay, err)
	}
	return application.RetryPolicy{Tries: w.Tries, Delay: delay}, nil
}

func toClientSettingsWire(s application.ClientSettings) clientSettingsWire {
	return clientSettingsWire{
		Servers:                s.Servers,
		BackupPath:             s.BackupPath,
		PeerStoragePath:        s.PeerStoragePath,
		ScheduleAhead:          s.ScheduleAhead.String(),
		RegisterResponseRetry:  toRetryWire(s.RegisterResponseRetry),
		RequestConnectionRetry: toRetryWire(s.RequestConnectionRetry),
	}
}

func fromClientSettingsWire(w clientSettingsWire) (application.ClientSettings, error) {
	scheduleAhead, err := time.ParseDuration(w.ScheduleAhead)
	if err != nil {
		return application.ClientSettings{}, fmt.Errorf("parse schedule_ahead %q: %w", w.ScheduleAhead, err)
	}
	registerRetry, err := fromRetryWire(w.RegisterResponseRetry)
	if err != nil {
		return application.ClientSettings{}, err
	}
	connectRetry, err := fromRetryWire(w.RequestConnectionRetry)
	if err != nil {
		return application.ClientSettings{}, err
	}
	return application.ClientSettings{
		Servers:                w.Servers,
		BackupPath:             w.BackupPath,
		PeerStoragePath:        w.PeerStoragePath,
		ScheduleAhead:          scheduleAhead,
		RegisterResponseRetry:  registerRetry,
		RequestConnectionRetry: connectRetry,
	}, nil
}

// DefaultClientSettings is what a first run materializes before the user has
// paired or configured anything, mirroring the teacher's
// NewDefaultConfiguration constructors.
func DefaultClientSettings() application.ClientSettings {
	return application.ClientSettings{
		BackupPath:      filepath.Join(".", "duet-backup"),
		PeerStoragePath: filepath.Join(".", "duet-peer-storage"),
		ScheduleAhead:   24 * time.Hour,
		RegisterResponseRetry: application.RetryPolicy{
			Tries: 20,
			Delay: 3 * time.Second,
		},
		RequestConnectionRetry: application.RetryPolicy{
			Tries: 4,
			Delay: 5 * time.Second,
		},
	}
}

// ClientSettingsManager implements application.ConfigManager[ClientSettings]
// over a TOML file, resolved by a Resolver and materialized with
// DefaultClientSettings on first access.
type ClientSettingsManager struct {
	resolver Resolver
}

var _ application.ConfigManager[application.ClientSettings] = (*ClientSettingsManager)(nil)

// NewClientSettingsManager builds a manager reading/writing through resolver.
func NewClientSettingsManager(resolver Resolver) *ClientSettingsManager {
	return &ClientSettingsManager{resolver: resolver}
}

// Configuration reads config.toml, writing out DefaultClientSettings first
// if the file does not yet exist.
func (m *ClientSettingsManager) Configuration() (application.ClientSettings, error) {
	path, err := m.resolver.Resolve()
	if err != nil {
		return application.ClientSettings{}, err
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		defaults := DefaultClientSettings()
		if err := m.Save(defaults); err != nil {
			return application.ClientSettings{}, err
		}
		return defaults, nil
	}
	if err != nil {
		return application.ClientSettings{}, fmt.Errorf("read %s: %w", path, err)
	}

	var wire clientSettingsWire
	if err := toml.Unmarshal(raw, &wire); err != nil {
		return application.ClientSettings{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return fromClientSettingsWire(wire)
}

// Save writes cfg to config.toml, creating its parent directory as needed.
func (m *ClientSettingsManager) Save(cfg application.ClientSettings) error {
	path, err := m.resolver.Resolve()
	if err != nil {
		return err
	}
	raw, err := toml.Marshal(toClientSettingsWire(cfg))
	if err != nil {
		return fmt.Errorf("encode client settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
