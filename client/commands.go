package client

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"relay/models"
	"relay/protocol"
)

// Commands turns prompt lines into protocol frames.
type Commands struct {
	username string
	sender   FrameSender
	table    *StatusTable
	out      *Printer

	newID func() string
	now   func() time.Time
}

func NewCommands(username string, sender FrameSender, table *StatusTable, out *Printer) *Commands {
	return &Commands{
		username: username,
		sender:   sender,
		table:    table,
		out:      out,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// Execute runs one line of input and reports whether the user asked to quit.
func (c *Commands) Execute(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}

	cmd, args, _ := strings.Cut(line, " ")
	switch strings.ToLower(cmd) {
	case "send":
		c.send(args)
	case "status":
		c.out.StatusTable(c.table.Snapshot())
	case "help":
		c.out.Help()
	case "quit", "exit":
		c.Quit()
		return true
	default:
		c.out.Printf("Unknown command %q. Type 'help' for a list of commands.\n", cmd)
	}
	return false
}

func (c *Commands) send(args string) {
	recipient, content, _ := strings.Cut(strings.TrimSpace(args), " ")
	content = strings.TrimSpace(content)
	if recipient == "" || content == "" {
		c.out.Printf("Usage: send <recipient> <message>\n")
		return
	}

	now := c.now()
	msg := models.Message{
		ID:        c.newID(),
		Sender:    c.username,
		Recipient: recipient,
		Content:   content,
		Timestamp: now.Format("15:04"),
	}

	// tracked first: the server_ack may arrive before Send returns
	c.table.Track(msg.ID, msg.Recipient, msg.Content, now)
	c.out.Submitted(msg.ID, msg.Recipient)

	if err := c.sender.Send(protocol.Send(msg)); err != nil {
		c.table.Forget(msg.ID)
		c.out.Error("Failed to send message: %v", err)
	}
}

// Quit tells the server the user is leaving.
func (c *Commands) Quit() {
	if err := c.sender.Send(protocol.Logout(c.username)); err != nil {
		c.out.Error("Failed to log out: %v", err)
	}
}
