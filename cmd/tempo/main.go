// Spins up the tempo server: a temporally cached view of a local directory tree, served over the
// Redis protocol.

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/nobletooth/tempo/pkg/config"
	"github.com/nobletooth/tempo/pkg/fs"
	"github.com/nobletooth/tempo/pkg/port"
	"github.com/nobletooth/tempo/pkg/utils"
)

var (
	printVersion = flag.Bool("print_version", false, "Print the version and exit.")
	rootDir      = flag.String("root", ".", "Directory the local backend serves; config file overrides.")
)

func main() {
	flag.Parse()
	utils.InitLogging()

	if *printVersion {
		slog.Info("Tempo build info.", "version", utils.Version, "commit", utils.Commit, "build", utils.BuildTime)
		return
	}

	conf, err := config.LoadFlagged()
	if err != nil {
		slog.Error("Failed to load config.", "error", err)
		os.Exit(1)
	}
	root := *rootDir
	if conf.Root != "" {
		root = conf.Root
	}
	if conf.Address != "" {
		if err := flag.Set("address", conf.Address); err != nil {
			slog.Error("Failed to apply config address.", "error", err)
			os.Exit(1)
		}
	}

	backend, err := fs.NewLocalBackend(root)
	if err != nil {
		slog.Error("Failed to create local backend.", "error", err)
		os.Exit(1)
	}
	cfs, err := fs.New(backend, conf.Cache.Rules())
	if err != nil {
		slog.Error("Failed to build cached filesystem.", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, os.Kill)

	go func() { // Listen for OS interrupts in the background.
		sig := <-signals
		slog.Info("Received termination signal, cancelling server context.", "signal", sig)
		cancel()
	}()

	slog.Info("Tempo serving cached filesystem.", "root", root, "address", port.ListenAddress())
	if err := port.RunRedisServer(ctx, cfs); err != nil {
		slog.Error("Tempo server stopped.", "err", err)
		os.Exit(1)
	}
}
