package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"relay/config"
)

type statsSource interface {
	GetStats() string
}

// controlSocket serves management commands on a unix socket. One command per
// connection, answered with "OK|<payload>" or "ERROR|<reason>".
type controlSocket struct {
	path     string
	listener net.Listener
	srv      statsSource
	log      *slog.Logger

	done     chan struct{}
	doneOnce sync.Once
}

func listenControl(path string, srv statsSource, log *slog.Logger) (*controlSocket, error) {
	// Remove a socket file left by a previous run
	os.Remove(path)

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, err
	}

	c := &controlSocket{
		path:     path,
		listener: listener,
		srv:      srv,
		log:      log,
		done:     make(chan struct{}),
	}
	go c.serve()

	log.Info("Control socket listening", "path", path)
	return c, nil
}

// Done is closed once a shutdown command has been received.
func (c *controlSocket) Done() <-chan struct{} {
	return c.done
}

func (c *controlSocket) Close() error {
	err := c.listener.Close()
	os.Remove(c.path)
	return err
}

func (c *controlSocket) serve() {
	for {
		conn, err := c.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			c.log.Warn("Control accept failed", "error", err)
			continue
		}
		go c.handle(conn)
	}
}

func (c *controlSocket) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}

	cmd, _, _ := strings.Cut(strings.TrimSpace(line), "|")
	switch cmd {
	case "":
		io.WriteString(conn, "ERROR|Invalid command\n")
	case "stats":
		io.WriteString(conn, "OK|"+c.srv.GetStats()+"\n")
	case "shutdown":
		io.WriteString(conn, "OK|Shutting down\n")
		c.doneOnce.Do(func() { close(c.done) })
	default:
		io.WriteString(conn, "ERROR|Unknown command\n")
	}
}

// controlRequest sends one command to a running server and returns the
// payload of an OK reply.
func controlRequest(path, command string) (string, error) {
	conn, err := net.DialTimeout("unix", path, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("connect to control socket %s: %w", path, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(5 * time.Second))

	if _, err := io.WriteString(conn, command+"\n"); err != nil {
		return "", err
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && reply == "" {
		return "", fmt.Errorf("read control reply: %w", err)
	}

	status, payload, _ := strings.Cut(strings.TrimSpace(reply), "|")
	if status != "OK" {
		return "", fmt.Errorf("server refused %q: %s", command, payload)
	}
	return payload, nil
}

// parseStats splits "connections=1,users=a;b,queued=2" into ordered rows.
func parseStats(payload string) [][]string {
	var rows [][]string
	for _, field := range strings.Split(payload, ",") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		rows = append(rows, []string{key, strings.ReplaceAll(value, ";", ", ")})
	}
	return rows
}

func controlSocketPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("socket"); path != "" {
		return path, nil
	}
	cfg, err := config.LoadServer()
	if err != nil {
		return "", &exitError{code: exitConfig, err: fmt.Errorf("config error: %w", err)}
	}
	return cfg.ControlSocket, nil
}

func newStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show connections, users and queued messages of a running server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := controlSocketPath(cmd)
			if err != nil {
				return err
			}
			payload, err := controlRequest(path, "stats")
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Metric", "Value"})
			table.AppendBulk(parseStats(payload))
			table.Render()
			return nil
		},
	}
}

func newShutdownCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shutdown",
		Short: "Ask a running server to shut down",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := controlSocketPath(cmd)
			if err != nil {
				return err
			}
			payload, err := controlRequest(path, "shutdown")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), payload)
			return nil
		},
	}
}
