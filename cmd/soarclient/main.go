package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/soarclient/soarsocket/pkg/client"
	"github.com/soarclient/soarsocket/pkg/logging"
	"github.com/soarclient/soarsocket/pkg/protocol"
	"github.com/soarclient/soarsocket/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		profilePath string
		server      string
		name        string
		logLevel    string
		showVersion bool
	)
	flags := pflag.NewFlagSet("soarclient", pflag.ContinueOnError)
	flags.StringVar(&profilePath, "profile", client.DefaultProfilePath(), "profile file holding the client identity")
	flags.StringVar(&server, "server", "", "websocket URL (overrides the profile)")
	flags.StringVar(&name, "name", "", "display name (overrides the profile)")
	flags.StringVar(&logLevel, "log-level", "info", "log level: "+logging.LevelNames())
	flags.BoolVar(&showVersion, "version", false, "print version and exit")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if showVersion {
		fmt.Println("soarclient", version.Full())
		return nil
	}

	closer, err := logging.Setup(logging.Options{Level: logLevel, Output: os.Stderr})
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	profile, err := client.LoadProfile(profilePath)
	if err != nil {
		return err
	}
	if server != "" {
		profile.Server = server
	}
	if name != "" {
		profile.DisplayName = name
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := client.Dial(ctx, profile.Server, profile.Identity, profile.DisplayName)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()
	slog.Info("connected", "server", profile.Server, "identity", profile.Identity)

	for {
		select {
		case <-ctx.Done():
			return nil
		case env, ok := <-c.Events():
			if !ok {
				return errors.New("connection closed by server")
			}
			printEvent(env)
		}
	}
}

func printEvent(env *protocol.Envelope) {
	switch env.Type {
	case protocol.TypeRoleUpdate:
		fmt.Printf("role: %s\n", env.Role)
	case protocol.TypeServerMessage:
		fmt.Printf("server: %s\n", env.Message)
	case protocol.TypeUserDirectory:
		names := make([]string, 0, len(env.Users))
		for _, u := range env.Users {
			names = append(names, fmt.Sprintf("%s (%s)", u.DisplayName, u.Role))
		}
		fmt.Printf("directory: %d user(s): %s\n", len(env.Users), strings.Join(names, ", "))
	case protocol.TypeRequestIdentity:
		slog.Debug("identity requested")
	default:
		slog.Debug("unhandled frame", "type", env.Type)
	}
}
