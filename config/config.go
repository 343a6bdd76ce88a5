package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var ErrUnknownBackend = errors.New("unknown queue backend")

// Queue backends
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

type Server struct {
	Addr          string        `env:"RELAY_ADDR" envDefault:"127.0.0.1:12345"`
	WebSocketAddr string        `env:"RELAY_WS_ADDR"` // empty disables the websocket listener
	QueueBackend  string        `env:"RELAY_QUEUE_BACKEND" envDefault:"memory"`
	DBPath        string        `env:"RELAY_DB_PATH" envDefault:":memory:"`
	WriteTimeout  time.Duration `env:"RELAY_WRITE_TIMEOUT" envDefault:"0s"`
	ControlSocket string        `env:"RELAY_CONTROL_SOCKET" envDefault:"/tmp/relay.sock"`
	LogLevel      string        `env:"RELAY_LOG_LEVEL" envDefault:"INFO"`
}

type Client struct {
	ServerAddr    string        `env:"RELAY_SERVER" envDefault:"127.0.0.1:12345"`
	FetchInterval time.Duration `env:"RELAY_FETCH_INTERVAL" envDefault:"2s"`
	FetchDelay    time.Duration `env:"RELAY_FETCH_DELAY" envDefault:"2s"`
	ShutdownGrace time.Duration `env:"RELAY_SHUTDOWN_GRACE" envDefault:"1s"`
	DialTimeout   time.Duration `env:"RELAY_DIAL_TIMEOUT" envDefault:"10s"`
	HistoryFile   string        `env:"RELAY_HISTORY_FILE"`
	LogLevel      string        `env:"RELAY_LOG_LEVEL" envDefault:"WARN"`
}

// LoadDotEnv seeds the environment from a .env file when one exists.
// Variables already set in the environment win.
func LoadDotEnv(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadServer parses the environment. Call Validate once any command-line
// overrides have been applied.
func LoadServer() (*Server, error) {
	cfg := &Server{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

func (c *Server) Validate() error {
	switch c.QueueBackend {
	case BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.QueueBackend)
	}
	if c.Addr == "" {
		return errors.New("RELAY_ADDR must not be empty")
	}
	return nil
}

func LoadClient() (*Client, error) {
	cfg := &Client{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse client config: %w", err)
	}
	if cfg.FetchInterval <= 0 {
		return nil, fmt.Errorf("RELAY_FETCH_INTERVAL must be positive, got %s", cfg.FetchInterval)
	}
	return cfg, nil
}
