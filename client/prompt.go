package client

import (
	"strings"

	"github.com/chzyer/readline"
)

const commandPrompt = "(send/status/help/quit): "

// Prompt yields one line of user input per call. io.EOF ends the session and
// readline.ErrInterrupt discards the current line.
type Prompt interface {
	Readline() (string, error)
}

// NewPrompt opens an interactive line editor on the terminal. Output written
// through its Stdout is printed above the prompt line.
func NewPrompt(historyFile string) (*readline.Instance, error) {
	return readline.NewEx(&readline.Config{
		Prompt:          commandPrompt,
		HistoryFile:     historyFile,
		HistoryLimit:    500,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
}

// AskUsername reads a username from p, asking again on blank input. Any
// read error, including an interrupt, aborts.
func AskUsername(p Prompt) (string, error) {
	if labeled, ok := p.(interface{ SetPrompt(string) }); ok {
		labeled.SetPrompt("Enter your username: ")
		defer labeled.SetPrompt(commandPrompt)
	}

	for {
		line, err := p.Readline()
		if err != nil {
			return "", err
		}
		if username := strings.TrimSpace(line); username != "" {
			return username, nil
		}
	}
}
