package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"duet/infrastructure/config"
	"duet/infrastructure/coordination"
	"duet/infrastructure/logging"
	"duet/infrastructure/rendezvous"
	"duet/infrastructure/transport"
)

// main runs the coordination server (§8): a thin process that accepts
// connections and hands each one to a Dispatcher wired to the three
// single-owner coordination managers. Grounded on the teacher's main.go
// server branch, minus the client/server mode prompt this binary has no
// use for.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigChan
		fmt.Println("\ninterrupt received, shutting down...")
		cancel()
	}()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "duet-coordinator: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	configOverride := config.FlagOverride(args, "config")
	settingsMgr := config.NewServerSettingsManager(config.NewServerSettingsResolver(configOverride))
	settings, err := settingsMgr.Configuration()
	if err != nil {
		return fmt.Errorf("load server.toml: %w", err)
	}

	log := logging.New(logging.Config{Console: true})

	pairMgr := coordination.NewPairManager(ctx)
	requestMgr := coordination.NewRequestManager(ctx)
	establishMgr := coordination.NewEstablishManager(ctx)
	dispatcher := rendezvous.NewDispatcher(pairMgr, requestMgr, establishMgr, log)

	listener, err := transport.Listen(settings.ListenOn.String(), settings.PublicAddress.AsSlice(), settings.Identity, nil)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", settings.ListenOn, err)
	}
	defer listener.Close()

	log.Info("coordination server listening", "addr", settings.ListenOn.String(), "identity", settings.Identity.Public.String())

	for {
		conn, err := listener.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn("accept failed", "err", err.Error())
			continue
		}
		go dispatcher.Serve(ctx, conn)
	}
}
