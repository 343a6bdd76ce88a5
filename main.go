package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"relay/config"
)

// Exit codes reported to the service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// exitError carries a specific exit code out of a cobra command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayd: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config.LoadDotEnv()

	if err := newRootCommand().Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code, exitErr.err
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "relayd",
		Short:         "Store-and-forward chat relay server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("socket", "", "control socket path (default $RELAY_CONTROL_SOCKET)")

	cmd.AddCommand(
		newServeCommand(),
		newStatsCommand(),
		newShutdownCommand(),
	)
	return cmd
}

// loadServerConfig reads the environment and applies flag overrides.
func loadServerConfig(cmd *cobra.Command) (*config.Server, error) {
	cfg, err := config.LoadServer()
	if err != nil {
		return nil, &exitError{code: exitConfig, err: fmt.Errorf("config error: %w", err)}
	}

	overrides := map[string]*string{
		"socket":  &cfg.ControlSocket,
		"addr":    &cfg.Addr,
		"ws-addr": &cfg.WebSocketAddr,
		"queue":   &cfg.QueueBackend,
		"db":      &cfg.DBPath,
	}
	for name, target := range overrides {
		flag := cmd.Flags().Lookup(name)
		if flag != nil && flag.Changed {
			*target = flag.Value.String()
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: exitConfig, err: fmt.Errorf("config error: %w", err)}
	}
	return cfg, nil
}
