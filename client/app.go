package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/chzyer/readline"

	"relay/protocol"
)

type Options struct {
	ServerAddr    string
	Username      string
	FetchDelay    time.Duration
	FetchInterval time.Duration // DefaultFetchInterval when not positive
	ShutdownGrace time.Duration
	DialTimeout   time.Duration
}

// App is one interactive client session.
type App struct {
	opts   Options
	prompt Prompt
	out    *Printer
	table  *StatusTable
	log    *slog.Logger
}

func NewApp(opts Options, prompt Prompt, out io.Writer, log *slog.Logger) *App {
	return &App{
		opts:   opts,
		prompt: prompt,
		out:    NewPrinter(out),
		table:  NewStatusTable(),
		log:    log,
	}
}

// Run connects, logs in and serves the prompt until the user quits. Only
// failing to establish the session is returned as an error.
func (a *App) Run(ctx context.Context) error {
	conn, err := Connect(a.opts.ServerAddr, a.opts.DialTimeout)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", a.opts.ServerAddr, err)
	}
	return a.serve(ctx, conn)
}

func (a *App) serve(ctx context.Context, conn *Conn) error {
	defer conn.Disconnect()

	if err := conn.Send(protocol.Login(a.opts.Username)); err != nil {
		return fmt.Errorf("login as %s: %w", a.opts.Username, err)
	}
	a.log.Info("Logged in", "user", a.opts.Username, "server", a.opts.ServerAddr)
	a.out.Printf("Logged in as %s. Type 'help' for commands.\n", a.opts.Username)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	listener := NewListener(a.table, a.out, a.log)
	commands := NewCommands(a.opts.Username, conn, a.table, a.out)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := listener.Run(ctx, conn); err != nil {
			a.log.Warn("Listener stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		FetchLoop(ctx, conn, a.opts.FetchDelay, a.opts.FetchInterval, a.log)
	}()

	a.commandLoop(ctx, commands)

	stop()
	if !waitTimeout(&wg, a.opts.ShutdownGrace) {
		a.log.Debug("Workers still running after grace period, closing connection")
	}
	conn.Disconnect()
	wg.Wait()
	return nil
}

func (a *App) commandLoop(ctx context.Context, commands *Commands) {
	for ctx.Err() == nil {
		line, err := a.prompt.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if !errors.Is(err, io.EOF) {
				a.log.Warn("Prompt failed", "error", err)
			}
			commands.Quit()
			return
		}
		if commands.Execute(line) {
			return
		}
	}
}

func waitTimeout(wg *sync.WaitGroup, d time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(d):
		return false
	}
}
