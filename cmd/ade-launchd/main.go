package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/0xADE/ade-launch/internal/app"
	"github.com/0xADE/ade-launch/internal/config"
	"github.com/0xADE/ade-launch/server"
)

func main() {
	var (
		socket  = flag.String("socket", "", "unix socket to listen on (default $ADE_LAUNCH_SOCK)")
		rebuild = flag.Bool("rebuild", false, "rediscover entries instead of loading the index snapshot")
	)
	flag.Parse()

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize config: %v\n", err)
		os.Exit(1)
	}
	cfg.SetNoCache(*rebuild)

	// Create context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start config watcher
	if err := cfg.Watch(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start config watcher: %v\n", err)
		os.Exit(1)
	}

	a, err := app.Open(ctx, cfg, app.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}

	socketPath := cfg.UnixSocket()
	if *socket != "" {
		socketPath = *socket
	}

	srv, err := server.New(socketPath, a)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create server: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("ade-launchd listening on %s (%d entries)\n", socketPath, a.Index.Len())

	if err := srv.Start(ctx); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ade-launchd stopped")
}
