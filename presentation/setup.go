package presentation

import (
	"fmt"
	"os"

	"duet/infrastructure/config"
)

// Setup materializes config.toml and data.toml on first run, generating a
// fresh device identity and the backup/peer-storage directories (§6
// `setup`). Grounded on original_source's client-cli setup command, minus
// its mnemonic/password recovery flow, which is explicitly out of scope.
func Setup(args []string) error {
	flags := parseCommonFlags(args)

	settingsMgr := config.NewClientSettingsManager(config.NewOverrideResolver(flags.configPath, config.NewConfigResolver()))
	identityMgr := config.NewClientIdentityManager(config.NewOverrideResolver(flags.dataPath, config.NewDataResolver()))

	settings, err := settingsMgr.Configuration()
	if err != nil {
		return fmt.Errorf("materialize config.toml: %w", err)
	}
	id, err := identityMgr.Configuration()
	if err != nil {
		return fmt.Errorf("materialize data.toml: %w", err)
	}
	if flags.server != "" {
		settings.Servers = []string{flags.server}
		if err := settingsMgr.Save(settings); err != nil {
			return fmt.Errorf("save config.toml: %w", err)
		}
	}

	if err := os.MkdirAll(settings.BackupPath, 0o700); err != nil {
		return fmt.Errorf("create backup directory: %w", err)
	}
	if err := os.MkdirAll(settings.PeerStoragePath, 0o700); err != nil {
		return fmt.Errorf("create peer storage directory: %w", err)
	}

	fmt.Printf("device identity: %s\n", id.KeyPair.Public.String())
	fmt.Printf("backup path: %s\n", settings.BackupPath)
	fmt.Printf("peer storage path: %s\n", settings.PeerStoragePath)
	if len(settings.Servers) == 0 {
		fmt.Println("no coordination server configured yet; pass --server host:port to pair or sync")
	}
	return nil
}
