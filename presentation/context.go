// Package presentation implements the CLI surface named in spec §6:
// setup, login, pair, sync, daemon, retrieve and check, each reading
// config.toml/data.toml through infrastructure/config and driving the
// core packages above it. Grounded on the teacher's thin
// presentation.StartClient/StartServer entry points, generalized from one
// TUN routing loop into this backup client's subcommand set.
package presentation

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"net"
	"net/netip"
	"time"

	"duet/application"
	"duet/domain/identity"
	"duet/domain/rendezvous"
	"duet/infrastructure/config"
	"duet/infrastructure/cryptography/framecrypto"
	"duet/infrastructure/cryptography/sealedbox"
	"duet/infrastructure/logging"
	infrarendezvous "duet/infrastructure/rendezvous"
	"duet/infrastructure/stun"
	"duet/infrastructure/transport"
)

// deviceContext is every paired device's working set, loaded once per CLI
// invocation from its config.toml/data.toml.
type deviceContext struct {
	settings  application.ClientSettings
	identity  application.ClientIdentity
	log       application.Logger
	settingsM *config.ClientSettingsManager
	identityM *config.ClientIdentityManager
}

// commonFlags are the --config/--data/--server overrides every subcommand
// in §6's CLI surface accepts.
type commonFlags struct {
	configPath string
	dataPath   string
	server     string
}

func parseCommonFlags(args []string) commonFlags {
	return commonFlags{
		configPath: config.FlagOverride(args, "config"),
		dataPath:   config.FlagOverride(args, "data"),
		server:     config.FlagOverride(args, "server"),
	}
}

func loadDeviceContext(flags commonFlags) (*deviceContext, error) {
	settingsMgr := config.NewClientSettingsManager(config.NewOverrideResolver(flags.configPath, config.NewConfigResolver()))
	identityMgr := config.NewClientIdentityManager(config.NewOverrideResolver(flags.dataPath, config.NewDataResolver()))

	settings, err := settingsMgr.Configuration()
	if err != nil {
		return nil, fmt.Errorf("load config.toml: %w", err)
	}
	id, err := identityMgr.Configuration()
	if err != nil {
		return nil, fmt.Errorf("load data.toml: %w", err)
	}
	if flags.server != "" {
		settings.Servers = []string{flags.server}
	}

	log := logging.New(logging.Config{Console: true})
	return &deviceContext{settings: settings, identity: id, log: log, settingsM: settingsMgr, identityM: identityMgr}, nil
}

// dialCoordinator opens a mutually-authenticated connection to the first
// configured coordination server and wraps it as a CoordinationClient.
// The coordination server presents no fixed expected peer key of its own
// (any well-formed self-signed cert is accepted, §4.1) — the caller trusts
// whichever key it answers with for the lifetime of this connection.
func (d *deviceContext) dialCoordinator(ctx context.Context) (application.CoordinationClient, error) {
	if len(d.settings.Servers) == 0 {
		return nil, fmt.Errorf("no coordination server configured; run setup or pass --server")
	}
	connector := transport.NewConnector(nil, d.identity.KeyPair)
	conn, err := connector.Connect(ctx, d.settings.Servers[0], nil)
	if err != nil {
		return nil, fmt.Errorf("connect to coordination server: %w", err)
	}
	return infrarendezvous.NewClient(conn), nil
}

// discoverPublicAddress runs the one-shot STUN bootstrap named in spec §1.
func discoverPublicAddress(ctx context.Context) (string, error) {
	d := stun.New("")
	ip, err := d.Discover(ctx)
	if err != nil {
		return "", fmt.Errorf("discover public address: %w", err)
	}
	return ip.String(), nil
}

// deviceCipher derives this device's own frame cipher and sealed-envelope
// box from its own private key (§4.3): every byte this device backs up —
// file frames and the sealed index alike — is encrypted under key material
// only this device holds. The peer storing that data never receives this
// key and can neither derive nor request it.
func deviceCipher(priv ed25519.PrivateKey) (*framecrypto.Cipher, *sealedbox.Box, error) {
	seed := priv.Seed()
	var key [32]byte
	copy(key[:], seed)
	cipher, err := framecrypto.New(key[:])
	if err != nil {
		return nil, nil, err
	}
	box, err := sealedbox.New(key)
	if err != nil {
		return nil, nil, err
	}
	return cipher, box, nil
}

// punchSocket reserves one local UDP port and reports it alongside this
// device's publicly visible address (§1's STUN bootstrap), so the same
// port can be used for the NAT traversal burst (§4.8) and the QUIC listener
// that follows it.
func punchSocket(ctx context.Context) (*net.UDPConn, netip.AddrPort, error) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{})
	if err != nil {
		return nil, netip.AddrPort{}, fmt.Errorf("reserve local udp port: %w", err)
	}
	ip, err := stun.New("").Discover(ctx)
	if err != nil {
		conn.Close()
		return nil, netip.AddrPort{}, fmt.Errorf("discover public address: %w", err)
	}
	localPort := conn.LocalAddr().(*net.UDPAddr).Port
	addr, ok := netip.AddrFromSlice(ip)
	if !ok {
		conn.Close()
		return nil, netip.AddrPort{}, fmt.Errorf("invalid public address %v", ip)
	}
	return conn, netip.AddrPortFrom(addr.Unmap(), uint16(localPort)), nil
}

// connectToPeer runs the rendezvous handshake (§4.8) against the
// coordination server and returns a mutually-authenticated connection to
// the peer. initiator selects which side dials versus listens once the
// addresses are exchanged and the NAT traversal burst has opened a path in
// both directions.
func connectToPeer(
	ctx context.Context,
	client application.CoordinationClient,
	kp identity.KeyPair,
	peerKey identity.PublicKey,
	req rendezvous.ConnectionRequest,
	initiator bool,
) (application.Connection, error) {
	punchConn, localAddr, err := punchSocket(ctx)
	if err != nil {
		return nil, err
	}

	budget := infrarendezvous.NewFixedRetryBudget(20, 3*time.Second)
	peerAddr, err := infrarendezvous.Establish(ctx, client, kp.Public, peerKey, req, localAddr, budget, infrarendezvous.UDPPunch(punchConn))
	punchConn.Close()
	if err != nil {
		return nil, fmt.Errorf("rendezvous handshake: %w", err)
	}

	listenAddr := fmt.Sprintf(":%d", localAddr.Port())
	if initiator {
		connector := transport.NewConnector(localAddr.Addr().AsSlice(), kp)
		conn, err := connector.Connect(ctx, peerAddr.String(), &peerKey)
		if err != nil {
			return nil, fmt.Errorf("connect to peer: %w", err)
		}
		return conn, nil
	}

	listener, err := transport.Listen(listenAddr, localAddr.Addr().AsSlice(), kp, &peerKey)
	if err != nil {
		return nil, fmt.Errorf("listen for peer: %w", err)
	}
	defer listener.Close()
	conn, err := listener.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("accept peer connection: %w", err)
	}
	return conn, nil
}

// waitUntil blocks until t, or ctx is cancelled first.
func waitUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
