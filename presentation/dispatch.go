package presentation

import (
	"context"
	"fmt"
	"strings"

	"duet/infrastructure/config"
)

// Dispatch routes one CLI invocation to its subcommand handler (§6's CLI
// surface: setup, login, pair, sync, daemon, retrieve, check). argv is
// os.Args[1:]; argv[0] names the subcommand, the rest are its flags.
func Dispatch(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		printUsage()
		return fmt.Errorf("no subcommand given")
	}
	cmd, rest := argv[0], argv[1:]

	switch cmd {
	case "setup":
		return Setup(rest)
	case "login":
		return Login(rest)
	case "pair":
		code := ""
		for i := 0; i < len(rest); i++ {
			a := rest[i]
			if len(a) > 0 && a[0] == '-' {
				if !strings.Contains(a, "=") {
					i++ // skip the flag's value
				}
				continue
			}
			if len(a) > 0 {
				code = a
				break
			}
		}
		return Pair(ctx, rest, code)
	case "sync":
		return Sync(ctx, rest, hasFlag(rest, "no-send"), hasFlag(rest, "no-receive"))
	case "daemon":
		return Daemon(ctx, rest)
	case "retrieve":
		return Retrieve(ctx, rest, config.FlagOverride(rest, "output"))
	case "check":
		return Check(ctx, rest)
	default:
		printUsage()
		return fmt.Errorf("unknown subcommand: %s", cmd)
	}
}

// hasFlag reports whether name appears as a bare boolean flag (--name),
// distinct from config.FlagOverride's "--name value" form.
func hasFlag(args []string, name string) bool {
	want := "--" + name
	for _, a := range args {
		if a == want {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Usage: duet <command> [flags]
Commands:
  setup                      generate a device identity and backup directories
  login                      show this device's identity and pairing status
  pair [code]                exchange keys with the other device
  sync [--no-send] [--no-receive]
                              run one push/pull exchange with the peer
  daemon                     run sync on a loop until interrupted
  retrieve [--output PATH]   restore everything the peer holds for this device
  check                      answer a pending rendezvous request, if any

Flags (all commands): --config PATH --data PATH --server HOST:PORT`)
}
