package presentation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"duet/infrastructure/peersync"
)

const defaultRetrieveDir = "duet-backup-restore"

// Retrieve pulls the peer's entire held copy of this device's backup into
// output, defaulting to ./duet-backup-restore in the working directory
// (§6 `retrieve [--output PATH]`). An empty destination Storage's Index is
// empty by construction, so SyncFrom's usual diff-driven pull naturally
// becomes a full restore. Grounded on original_source's client-cli
// retrieve command.
func Retrieve(ctx context.Context, args []string, output string) error {
	flags := parseCommonFlags(args)
	d, err := loadDeviceContext(flags)
	if err != nil {
		return err
	}
	if d.identity.PeerKey == nil {
		return fmt.Errorf("device is not paired yet; run pair first")
	}
	peerKey := *d.identity.PeerKey

	if output == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve working directory: %w", err)
		}
		output = filepath.Join(cwd, defaultRetrieveDir)
	}

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

	storage, err := peersync.NewDirStorage(output)
	if err != nil {
		return err
	}
	cipher, box, err := deviceCipher(d.identity.KeyPair.Private)
	if err != nil {
		return err
	}

	engine := peersync.NewEngine(storage, cipher, box, d.log)
	if err := engine.SyncFrom(ctx, conn); err != nil {
		return fmt.Errorf("retrieve backup: %w", err)
	}
	fmt.Printf("restored backup to %s\n", output)
	return nil
}
