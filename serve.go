package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"

	"relay/config"
	"relay/db"
	"relay/server"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}

	cmd.Flags().String("addr", "", "TCP listen address (default $RELAY_ADDR)")
	cmd.Flags().String("ws-addr", "", "WebSocket listen address, empty to disable (default $RELAY_WS_ADDR)")
	cmd.Flags().String("queue", "", "queue backend: memory or sqlite (default $RELAY_QUEUE_BACKEND)")
	cmd.Flags().String("db", "", "sqlite database path (default $RELAY_DB_PATH)")

	return cmd
}

func openQueue(cfg *config.Server) (server.QueueStore, func() error, error) {
	switch cfg.QueueBackend {
	case config.BackendSQLite:
		store, err := db.New(cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open queue database: %w", err)
		}
		return store, store.Close, nil
	default:
		return server.NewMemoryQueue(), func() error { return nil }, nil
	}
}

func serve(cfg *config.Server) error {
	log := logs.GetLoggerFromString(cfg.LogLevel)

	queues, closeQueues, err := openQueue(cfg)
	if err != nil {
		return err
	}
	defer closeQueues()

	srv := server.New(queues, &server.ServerConfig{
		Addr:          cfg.Addr,
		WebSocketAddr: cfg.WebSocketAddr,
		WriteTimeout:  cfg.WriteTimeout,
	}, log)

	errs := make(chan error, 2)
	go func() { errs <- srv.Start() }()
	if cfg.WebSocketAddr != "" {
		go func() { errs <- srv.StartWebSocket() }()
	}

	control, err := listenControl(cfg.ControlSocket, srv, log)
	if err != nil {
		log.Warn("Control socket unavailable", "path", cfg.ControlSocket, "error", err)
	} else {
		defer control.Close()
	}

	log.Info("Relay server started", "addr", cfg.Addr, "ws_addr", cfg.WebSocketAddr, "queue", cfg.QueueBackend)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownRequested <-chan struct{}
	if control != nil {
		shutdownRequested = control.Done()
	}

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", "signal", sig.String())
	case <-shutdownRequested:
		log.Info("Shutdown requested over control socket")
	case runErr = <-errs:
		if runErr != nil {
			log.Error("Listener failed", "error", runErr)
		}
	}

	srv.Shutdown()
	return runErr
}
