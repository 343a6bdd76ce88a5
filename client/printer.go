package client

import (
	"fmt"
	"io"
	"sync"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"relay/models"
	"relay/protocol"
)

var statusSymbols = map[models.Status]string{
	models.StatusPending:   "⧖",
	models.StatusServerAck: "✓",
	models.StatusDelivered: "✓✓",
}

func statusSymbol(s models.Status) string {
	if sym, ok := statusSymbols[s]; ok {
		return sym
	}
	return "?"
}

// Printer serializes terminal output from the listener and the command loop.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

func (p *Printer) Printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.Printf("%s\n", color.Red.Sprintf(format, args...))
}

// Incoming prints a message pushed or fetched from the server.
func (p *Printer) Incoming(frame protocol.Frame) {
	p.Printf("\n%s: %s - %s\n", color.Cyan.Sprint(frame.From), frame.Content, frame.Timestamp)
}

func (p *Printer) Submitted(id, recipient string) {
	p.Printf("%s message %s to %s\n", color.Yellow.Sprint(statusSymbol(models.StatusPending)), id, recipient)
}

func (p *Printer) StatusChanged(e Entry) {
	p.Printf("\nStatus of message %s to %s: %s (%s)\n",
		e.ID, e.Recipient, color.Green.Sprint(statusSymbol(e.Status)), e.Status)
}

func (p *Printer) Disconnected() {
	p.Printf("\n%s\n", color.Red.Sprint("Disconnected from server."))
}

func (p *Printer) Help() {
	p.Printf(`Commands:
  send <recipient> <message>  send a message
  status                      show the status of sent messages
  help                        show this help
  quit                        log out and exit
`)
}

// StatusTable renders entries as a table.
func (p *Printer) StatusTable(entries []Entry) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(entries) == 0 {
		fmt.Fprintln(p.out, "No messages sent yet.")
		return
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"ID", "To", "Message", "Sent", "Status"})
	table.SetAutoWrapText(false)
	for _, e := range entries {
		table.Append([]string{
			e.ID,
			e.Recipient,
			e.Content,
			e.SubmittedAt.Format("15:04:05"),
			statusSymbol(e.Status) + " " + string(e.Status),
		})
	}
	table.Render()
}
