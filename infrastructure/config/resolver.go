// Package config implements the persisted-state layer named in spec §6:
// config.toml (ClientSettings) and data.toml (ClientIdentity) for a paired
// device, plus the coordination server's own settings file. Resolver ->
// Reader/Writer -> Manager mirrors the teacher's
// infrastructure/PAL/configuration/{client,server} layering, with
// go-toml/v2 standing in for the teacher's encoding/json.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Resolver resolves a configuration file's absolute path.
type Resolver interface {
	Resolve() (string, error)
}

// defaultResolver resolves to <baseDir>/duet/<fileName>, baseDir supplied
// by the caller (XDG_CONFIG_HOME-derived for config.toml,
// XDG_DATA_HOME-derived for data.toml).
type defaultResolver struct {
	baseDirFunc func() (string, error)
	fileName    string
}

func (r defaultResolver) Resolve() (string, error) {
	base, err := r.baseDirFunc()
	if err != nil {
		return "", fmt.Errorf("resolve base directory for %s: %w", r.fileName, err)
	}
	return filepath.Join(base, "duet", r.fileName), nil
}

// NewConfigResolver resolves config.toml under XDG_CONFIG_HOME (falling
// back to os.UserConfigDir).
func NewConfigResolver() Resolver {
	return defaultResolver{baseDirFunc: configBaseDir, fileName: "config.toml"}
}

// NewDataResolver resolves data.toml under XDG_DATA_HOME (falling back to
// .local/share under os.UserHomeDir).
func NewDataResolver() Resolver {
	return defaultResolver{baseDirFunc: dataBaseDir, fileName: "data.toml"}
}

func configBaseDir() (string, error) {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir, nil
	}
	return os.UserConfigDir()
}

func dataBaseDir() (string, error) {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share"), nil
}

// overrideResolver short-circuits to an explicit path when set, the Go
// equivalent of the teacher's ArgumentResolver (there backed by a parsed
// --config flag rather than a constructor argument, since this repo's CLI
// passes the override through directly instead of re-scanning os.Args).
type overrideResolver struct {
	override string
	fallback Resolver
}

// NewOverrideResolver returns a Resolver that resolves to override when
// non-empty, or defers to fallback otherwise.
func NewOverrideResolver(override string, fallback Resolver) Resolver {
	return overrideResolver{override: override, fallback: fallback}
}

func (r overrideResolver) Resolve() (string, error) {
	if r.override != "" {
		return r.override, nil
	}
	return r.fallback.Resolve()
}
