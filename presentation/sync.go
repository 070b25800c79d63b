package presentation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"duet/application"
	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/domain/rendezvous"
	"duet/infrastructure/peersync"
)

// Sync runs one full peer-sync exchange over a freshly rendezvoused
// connection (§6 `sync [--no-send] [--no-receive]`, §4.9). Grounded on
// original_source's client-cli sync command; the turn-taking it does over
// a single connection (push, then pull, or the reverse) is replaced here
// with two independent goroutines — one serving the peer's requests, one
// driving this device's own push/pull — since peersync's one-stream-per-
// request wire protocol multiplexes cleanly over QUIC.
func Sync(ctx context.Context, args []string, noSend, noReceive bool) error {
	flags := parseCommonFlags(args)
	d, err := loadDeviceContext(flags)
	if err != nil {
		return err
	}
	if d.identity.PeerKey == nil {
		return fmt.Errorf("device is not paired yet; run pair first")
	}
	peerKey := *d.identity.PeerKey

	client, err := d.dialCoordinator(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	req, initiator, err := scheduleRendezvous(ctx, client, d.identity.KeyPair.Public, peerKey, d.settings.ScheduleAhead)
	if err != nil {
		return err
	}
	if err := waitUntil(ctx, req.ScheduledAt); err != nil {
		return err
	}

	conn, err := connectToPeer(ctx, client, d.identity.KeyPair, peerKey, req, initiator)
	if err != nil {
		return err
	}
	defer conn.Close()

	storage, err := peersync.NewDirStorage(d.settings.BackupPath)
	if err != nil {
		return err
	}
	peerStorage, err := peersync.NewDirStorage(d.settings.PeerStoragePath)
	if err != nil {
		return err
	}
	cipher, box, err := deviceCipher(d.identity.KeyPair.Private)
	if err != nil {
		return err
	}

	responder := peersync.NewResponder(peerStorage, d.log)
	go responder.Serve(ctx, conn)

	engine := peersync.NewEngine(storage, cipher, box, d.log)
	if !noSend {
		if err := engine.SyncTo(ctx, conn); err != nil {
			return fmt.Errorf("push local changes: %w", err)
		}
	}
	if !noReceive {
		if err := engine.SyncFrom(ctx, conn); err != nil {
			return fmt.Errorf("pull remote changes: %w", err)
		}
	}
	return nil
}

// scheduleRendezvous asks the coordination server when to meet the peer:
// if the peer has already requested a rendezvous, this device accepts that
// schedule and answers as non-initiator; otherwise it proposes one
// ScheduleAhead from now and becomes the initiator (§4.6).
func scheduleRendezvous(
	ctx context.Context,
	client application.CoordinationClient,
	self, peer identity.PublicKey,
	scheduleAhead time.Duration,
) (rendezvous.ConnectionRequest, bool, error) {
	initiatorKey, at, ok, err := client.CheckConnection(ctx)
	if err != nil && !errors.Is(err, errkind.ErrNoData) {
		return rendezvous.ConnectionRequest{}, false, fmt.Errorf("check pending connection: %w", err)
	}
	if ok {
		return rendezvous.ConnectionRequest{Initiator: initiatorKey, Target: self, ScheduledAt: at}, false, nil
	}

	at = time.Now().Add(scheduleAhead)
	if _, err := client.RequestConnection(ctx, self, peer, at); err != nil {
		return rendezvous.ConnectionRequest{}, false, fmt.Errorf("request connection: %w", err)
	}
	return rendezvous.ConnectionRequest{Initiator: self, Target: peer, ScheduledAt: at}, true, nil
}
