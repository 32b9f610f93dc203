package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/soarclient/soarsocket/pkg/config"
	"github.com/soarclient/soarsocket/pkg/datastore"
	"github.com/soarclient/soarsocket/pkg/logging"
	"github.com/soarclient/soarsocket/pkg/server"
	"github.com/soarclient/soarsocket/pkg/store"
	"github.com/soarclient/soarsocket/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var (
		exportUsers bool
		importUsers string
		showVersion bool
	)
	flags := pflag.NewFlagSet("soarsocket", pflag.ContinueOnError)
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP bind address")
	flags.StringVar(&cfg.UsersDB, "db", cfg.UsersDB, "role store URL (path, sqlite://, badger://, redis://)")
	flags.StringVar(&cfg.WebSocket.Path, "ws-path", cfg.WebSocket.Path, "websocket endpoint path")
	flags.DurationVar(&cfg.WebSocket.HeartbeatInterval, "heartbeat", cfg.WebSocket.HeartbeatInterval, "websocket heartbeat interval")
	flags.StringVar(&cfg.ShopURL, "shop-url", cfg.ShopURL, "checkout link prefix")
	flags.DurationVar(&cfg.MetricsLogInterval, "metrics-log-interval", cfg.MetricsLogInterval, "periodic metrics log interval (0 to disable)")
	flags.BoolVar(&cfg.Console, "console", cfg.Console, "read operator commands from stdin")
	flags.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: "+logging.LevelNames())
	flags.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format: text or json")
	flags.StringVar(&cfg.Log.File, "log-file", cfg.Log.File, "also write JSON log records to this file")
	flags.BoolVar(&exportUsers, "export-users", false, "print all stored users as YAML and exit")
	flags.StringVar(&importUsers, "import-users", "", "merge users from a YAML file before serving")
	flags.BoolVar(&showVersion, "version", false, "print version and exit")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("soarsocket", version.Full())
		return nil
	}

	cfg.Sanitize()
	if err := cfg.Validate(); err != nil {
		return err
	}

	closer, err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
		File:   cfg.Log.File,
	})
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}
	defer func() { _ = closer.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	persister, err := datastore.Open(cfg.UsersDB)
	if err != nil {
		return err
	}

	// Handle export (run and exit)
	if exportUsers {
		st, err := store.Open(ctx, persister)
		if err != nil {
			_ = persister.Close()
			return err
		}
		defer func() { _ = st.Close() }()
		data, err := server.ExportUsersYAML(st)
		if err != nil {
			return err
		}
		fmt.Print(string(data))
		return nil
	}

	deps := server.Dependencies{Store: persister}
	if cfg.Console {
		deps.ConsoleIn = os.Stdin
		deps.ConsoleOut = os.Stdout
	}
	srv, err := server.New(ctx, cfg, deps)
	if err != nil {
		return err
	}

	if importUsers != "" {
		if err := server.LoadUsersFromYAML(ctx, importUsers, srv.Store()); err != nil {
			_ = srv.Store().Close()
			return err
		}
	}

	if err := srv.Run(ctx); err != nil {
		slog.Error("server error", "err", err)
		return err
	}
	return nil
}
