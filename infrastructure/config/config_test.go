package config

import (
	"net/netip"
	"path/filepath"
	"testing"
	"time"

	"duet/application"
	"duet/domain/identity"
)

func TestOverrideResolverPrefersExplicitPath(t *testing.T) {
	fallback := defaultResolver{baseDirFunc: func() (string, error) { return "/fallback", nil }, fileName: "config.toml"}
	r := NewOverrideResolver("/explicit/config.toml", fallback)

	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != "/explicit/config.toml" {
		t.Fatalf("got %q, want explicit override", got)
	}
}

func TestOverrideResolverFallsBackWhenEmpty(t *testing.T) {
	fallback := defaultResolver{baseDirFunc: func() (string, error) { return "/fallback", nil }, fileName: "config.toml"}
	r := NewOverrideResolver("", fallback)

	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	want := filepath.Join("/fallback", "duet", "config.toml")
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFlagOverrideParsesSpaceAndEqualsForms(t *testing.T) {
	cases := []struct {
		name string
		args []string
		want string
	}{
		{"space form", []string{"sync", "--config", "/a/config.toml"}, "/a/config.toml"},
		{"equals form", []string{"sync", "--config=/b/config.toml"}, "/b/config.toml"},
		{"absent", []string{"sync"}, ""},
		{"trailing flag with no value", []string{"sync", "--config"}, ""},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := FlagOverride(c.args, "config"); got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func fixedResolver(path string) Resolver {
	return overrideResolver{override: path}
}

func TestClientSettingsRoundTripAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	mgr := NewClientSettingsManager(fixedResolver(path))

	defaults, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("first Configuration: %v", err)
	}
	if defaults.RegisterResponseRetry.Tries == 0 {
		t.Fatalf("expected materialized defaults, got zero retry tries")
	}

	cfg := application.ClientSettings{
		Servers:         []string{"coord.example.com:7443"},
		BackupPath:      "/home/alice/Pictures",
		PeerStoragePath: "/var/lib/duet/peer",
		ScheduleAhead:   6 * time.Hour,
		RegisterResponseRetry: application.RetryPolicy{
			Tries: 3,
			Delay: 500 * time.Millisecond,
		},
		RequestConnectionRetry: application.RetryPolicy{
			Tries: 7,
			Delay: 2 * time.Second,
		},
	}
	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("second Configuration: %v", err)
	}
	if got.BackupPath != cfg.BackupPath || got.PeerStoragePath != cfg.PeerStoragePath {
		t.Fatalf("paths did not round-trip: got %+v", got)
	}
	if got.ScheduleAhead != cfg.ScheduleAhead {
		t.Fatalf("schedule_ahead = %v, want %v", got.ScheduleAhead, cfg.ScheduleAhead)
	}
	if got.RegisterResponseRetry != cfg.RegisterResponseRetry {
		t.Fatalf("register retry = %+v, want %+v", got.RegisterResponseRetry, cfg.RegisterResponseRetry)
	}
	if len(got.Servers) != 1 || got.Servers[0] != cfg.Servers[0] {
		t.Fatalf("servers = %v, want %v", got.Servers, cfg.Servers)
	}
}

func TestClientIdentityGeneratesFreshKeyOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.toml")
	mgr := NewClientIdentityManager(fixedResolver(path))

	first, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("first Configuration: %v", err)
	}
	if first.PeerKey != nil {
		t.Fatalf("unpaired first run should have nil PeerKey")
	}

	again, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("second Configuration: %v", err)
	}
	if !again.KeyPair.Public.Equal(first.KeyPair.Public) {
		t.Fatalf("key pair was regenerated instead of persisted")
	}
}

func TestClientIdentityRoundTripsPeerKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.toml")
	mgr := NewClientIdentityManager(fixedResolver(path))

	kp, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	peer, err := identity.Generate()
	if err != nil {
		t.Fatalf("generate peer: %v", err)
	}

	want := application.ClientIdentity{KeyPair: kp, PeerKey: &peer.Public}
	if err := mgr.Save(want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("Configuration: %v", err)
	}
	if !got.KeyPair.Public.Equal(want.KeyPair.Public) {
		t.Fatalf("key pair did not round-trip")
	}
	if got.PeerKey == nil || !got.PeerKey.Equal(peer.Public) {
		t.Fatalf("peer key did not round-trip, got %+v", got.PeerKey)
	}
}

func TestServerSettingsRoundTripAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.toml")
	mgr := NewServerSettingsManager(fixedResolver(path))

	defaults, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("first Configuration: %v", err)
	}
	if defaults.ListenOn.Port() != DefaultListenPort {
		t.Fatalf("port = %d, want %d", defaults.ListenOn.Port(), DefaultListenPort)
	}

	cfg := application.ServerSettings{
		Identity:      defaults.Identity,
		ListenOn:      netip.MustParseAddrPort("0.0.0.0:9999"),
		PublicAddress: netip.MustParseAddr("203.0.113.7"),
	}
	if err := mgr.Save(cfg); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Configuration()
	if err != nil {
		t.Fatalf("second Configuration: %v", err)
	}
	if got.ListenOn != cfg.ListenOn {
		t.Fatalf("listen_on = %v, want %v", got.ListenOn, cfg.ListenOn)
	}
	if got.PublicAddress != cfg.PublicAddress {
		t.Fatalf("public_address = %v, want %v", got.PublicAddress, cfg.PublicAddress)
	}
	if !got.Identity.Public.Equal(cfg.Identity.Public) {
		t.Fatalf("identity did not round-trip")
	}
}
