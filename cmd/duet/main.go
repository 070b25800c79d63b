package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"duet/presentation"
)

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

	if err := presentation.Dispatch(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "duet: %v\n", err)
		os.Exit(1)
	}
}
