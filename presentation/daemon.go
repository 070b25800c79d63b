package presentation

import (
	"context"
)

// Daemon runs Sync in a loop for as long as ctx stays alive (§6 `daemon`).
// Each iteration both pushes and pulls; a failed iteration is logged and
// retried on the next pass rather than aborting the process. Grounded on
// original_source's client-cli daemon command.
func Daemon(ctx context.Context, args []string) error {
	d, err := loadDeviceContext(parseCommonFlags(args))
	if err != nil {
		return err
	}
	for {
		if err := Sync(ctx, args, false, false); err != nil {
			d.log.Error("sync iteration failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}
