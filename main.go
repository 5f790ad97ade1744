package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/client"
	"github.com/wfunc/runeserver/config"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/persistence"
	"github.com/wfunc/runeserver/script"
	"github.com/wfunc/runeserver/server"
	"github.com/wfunc/runeserver/services"
)

const usage = "usage: runeserver [<listenport> | <serverip>:<serverport>]"

type mode int

const (
	modeServer mode = iota
	modeClient
)

// parseArgs picks the run mode: no argument or a port runs the server, host:port runs
// the client against that server.
func parseArgs(args []string) (mode, string, error) {
	switch len(args) {
	case 0:
		return modeServer, "", nil
	case 1:
	default:
		return 0, "", errors.New(usage)
	}
	arg := args[0]
	if host, port, err := net.SplitHostPort(arg); err == nil {
		if host == "" || !validPort(port) {
			return 0, "", fmt.Errorf("invalid server address %q", arg)
		}
		return modeClient, arg, nil
	}
	if !validPort(arg) {
		return 0, "", fmt.Errorf("invalid port %q\n%s", arg, usage)
	}
	return modeServer, ":" + arg, nil
}

func validPort(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0 && n <= 65535
}

func main() {
	m, addr, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if m == modeClient {
		runClient(ctx, addr)
		return
	}
	runServer(ctx, addr)
}

func runServer(ctx context.Context, listenAddr string) {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if listenAddr != "" {
		cfg.Server.TCPAddress = listenAddr
	}

	// Initialize logger
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Log.Fatalf("Failed to load catalog: %v", err)
	}
	behaviors := game.NewBehaviors()
	if err := script.Install(behaviors, cat); err != nil {
		logger.Log.Fatalf("Failed to install scripted behaviors: %v", err)
	}

	// Initialize leaderboard
	ledger, err := persistence.Open(cfg.Leaderboard)
	if err != nil {
		logger.Log.Fatalf("Failed to open leaderboard: %v", err)
	}
	if ledger != nil {
		defer ledger.Close()
		logger.Log.Infof("Leaderboard ready (%s)", cfg.Leaderboard.Driver)
	}

	leaderboard := services.NewLeaderboardService(ledger)
	defer leaderboard.Wait()

	gameServer := server.NewGameServer(cfg, cat, behaviors, leaderboard)

	logger.Log.Infof("Starting game server on %s", cfg.Server.TCPAddress)
	if err := gameServer.Run(ctx); err != nil {
		logger.Log.Fatalf("Server stopped: %v", err)
	}
}

func runClient(ctx context.Context, addr string) {
	logger.Init("warn")
	defer logger.Sync()

	err := client.New(addr, os.Stdin, os.Stdout).Run(ctx)
	if err != nil && !errors.Is(err, client.ErrShutdown) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
