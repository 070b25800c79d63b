package presentation

import (
	"context"
	"errors"
	"fmt"

	"duet/domain/errkind"
	"duet/domain/rendezvous"
	"duet/infrastructure/peersync"
)

// Check answers a pending rendezvous request from the peer, if one exists,
// joining as the non-initiator and running both sync directions; it does
// nothing and returns nil when nobody is asking (§6 `check`). Grounded on
// original_source's client-cli check command.
func Check(ctx context.Context, args []string) error {
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

	initiatorKey, at, ok, err := client.CheckConnection(ctx)
	if err != nil && !errors.Is(err, errkind.ErrNoData) {
		return fmt.Errorf("check pending connection: %w", err)
	}
	if !ok {
		return nil
	}

	req := rendezvous.ConnectionRequest{Initiator: initiatorKey, Target: d.identity.KeyPair.Public, ScheduledAt: at}
	if err := waitUntil(ctx, req.ScheduledAt); err != nil {
		return err
	}

	conn, err := connectToPeer(ctx, client, d.identity.KeyPair, peerKey, req, false)
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
	if err := engine.SyncTo(ctx, conn); err != nil {
		return fmt.Errorf("push local changes: %w", err)
	}
	return engine.SyncFrom(ctx, conn)
}
