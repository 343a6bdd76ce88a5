package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"relay/client"
	"relay/config"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

var errConfig = errors.New("config error")

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "relay-client: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	config.LoadDotEnv()

	if err := newClientCommand().Execute(); err != nil {
		if errors.Is(err, errConfig) {
			return exitConfig, err
		}
		return exitRuntime, err
	}
	return exitOK, nil
}

func newClientCommand() *cobra.Command {
	var serverAddr string
	var username string

	cmd := &cobra.Command{
		Use:           "relay-client",
		Short:         "Interactive client for the relay server",
		Example:       "relay-client --user alice --server 127.0.0.1:12345",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return fmt.Errorf("%w: %w", errConfig, err)
			}
			if cmd.Flags().Changed("server") {
				cfg.ServerAddr = serverAddr
			}
			return runClient(cfg, username)
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", "", "server address, host:port or ws://host:port/ws (default $RELAY_SERVER)")
	cmd.Flags().StringVarP(&username, "user", "u", "", "username to log in as, asked interactively when empty")

	return cmd
}

func runClient(cfg *config.Client, username string) error {
	log := logs.GetLoggerFromString(cfg.LogLevel)

	prompt, err := client.NewPrompt(cfg.HistoryFile)
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	defer prompt.Close()

	if username == "" {
		if username, err = client.AskUsername(prompt); err != nil {
			return fmt.Errorf("read username: %w", err)
		}
	}

	app := client.NewApp(client.Options{
		ServerAddr:    cfg.ServerAddr,
		Username:      username,
		FetchDelay:    cfg.FetchDelay,
		FetchInterval: cfg.FetchInterval,
		ShutdownGrace: cfg.ShutdownGrace,
		DialTimeout:   cfg.DialTimeout,
	}, prompt, prompt.Stdout(), log)

	return app.Run(context.Background())
}
