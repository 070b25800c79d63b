package presentation

import (
	"context"
	"errors"
	"fmt"

	"duet/domain/errkind"
	"duet/domain/identity"
	"duet/domain/pairing"
	"duet/infrastructure/rendezvous"
)

// Pair exchanges public keys with the other device through the
// coordination server (§6 `pair [code]`, §8 S1/S2). With no code, this
// device registers and prints a fresh code for the other device to claim,
// then waits for it. With a code, this device claims it directly.
// Grounded on original_source's client-cli pair command.
func Pair(ctx context.Context, args []string, code string) error {
	flags := parseCommonFlags(args)
	d, err := loadDeviceContext(flags)
	if err != nil {
		return err
	}
	client, err := d.dialCoordinator(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	self := d.identity.KeyPair.Public

	var peerKey identity.PublicKey
	if code != "" {
		parsed, err := pairing.Parse(code)
		if err != nil {
			return fmt.Errorf("invalid pairing code: %w", err)
		}
		peerKey, err = client.Claim(ctx, parsed, self)
		if err != nil {
			return fmt.Errorf("claim pairing code: %w", err)
		}
	} else {
		minted, err := client.Register(ctx, self)
		if err != nil {
			return fmt.Errorf("register pairing code: %w", err)
		}
		fmt.Printf("pairing code: %s\n", minted.String())
		fmt.Println("enter this code on your other device with: duet pair", minted.String())

		budget := rendezvous.DefaultRegisterResponseBudget()
		var found bool
		for budget.Next(ctx) {
			peerKey, err = client.GetRegisterResponse(ctx)
			if err == nil {
				found = true
				break
			}
			if !errors.Is(err, errkind.ErrNoData) {
				return fmt.Errorf("poll for pairing response: %w", err)
			}
		}
		if !found {
			return fmt.Errorf("%w: nobody claimed this pairing code in time", errkind.ErrPeerNoResponse)
		}
	}

	d.identity.PeerKey = &peerKey
	if err := d.identityM.Save(d.identity); err != nil {
		return fmt.Errorf("save paired identity: %w", err)
	}
	fmt.Printf("paired with: %s\n", peerKey.String())
	return nil
}
