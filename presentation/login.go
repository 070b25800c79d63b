package presentation

import (
	"fmt"
)

// Login verifies this device already has a config.toml/data.toml pair to
// work from, printing its identity (§6 `login`). Grounded on
// original_source's client-cli login command, minus the mnemonic/password
// re-derivation flow it uses to recover a lost identity — this spec treats
// key recovery as out of scope and data.toml as the device's only identity
// record.
func Login(args []string) error {
	d, err := loadDeviceContext(parseCommonFlags(args))
	if err != nil {
		return fmt.Errorf("no device identity found, run setup first: %w", err)
	}
	fmt.Printf("device identity: %s\n", d.identity.KeyPair.Public.String())
	if d.identity.PeerKey != nil {
		fmt.Printf("paired with: %s\n", d.identity.PeerKey.String())
	} else {
		fmt.Println("not paired yet; run pair to exchange keys with your other device")
	}
	return nil
}
