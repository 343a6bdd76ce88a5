package server

import (
	"log/slog"
	"sync"

	"relay/models"
	"relay/protocol"
)

// Engine owns the session registry and the queue store. Every registry or
// queue mutation happens under mu; frames are always written after mu is
// released.
type Engine struct {
	mu       sync.Mutex
	registry *Registry
	queues   QueueStore
	log      *slog.Logger
}

func NewEngine(queues QueueStore, log *slog.Logger) *Engine {
	return &Engine{
		registry: NewRegistry(),
		queues:   queues,
		log:      log,
	}
}

// Login binds session to username. A previous holder of the name keeps its
// connection but stops receiving routed traffic.
func (e *Engine) Login(session *Session, username string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if session.username != "" && session.username != username {
		e.detach(session)
	}
	if prev, ok := e.registry.Lookup(username); ok && prev != session {
		e.log.Info("Replacing existing session", "user", username, "previous", prev.RemoteAddr())
	}

	session.username = username
	e.registry.Register(username, session)
}

// Logout unbinds session and reports the name it was logged in as. Calling it
// again, or on a session that never logged in, is a no-op.
func (e *Engine) Logout(session *Session) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	username := session.username
	if username == "" {
		return "", false
	}
	e.detach(session)
	session.username = ""
	return username, true
}

// detach removes the registry entry only while it still points at session,
// so a stale connection cannot evict a newer login. Caller holds mu.
func (e *Engine) detach(session *Session) {
	if current, ok := e.registry.Lookup(session.username); ok && current == session {
		e.registry.Remove(session.username)
	}
}

// Send acknowledges msg to its sender, queues it for the recipient and tries
// one immediate delivery. A message that cannot be pushed stays queued for
// the recipient's next fetch.
func (e *Engine) Send(sender *Session, msg models.Message) {
	if err := sender.Send(protocol.StatusUpdate(msg.ID, models.StatusServerAck)); err != nil {
		e.log.Warn("Failed to acknowledge message", "id", msg.ID, "error", err)
	}

	e.mu.Lock()
	queued := true
	if err := e.queues.Enqueue(msg.Recipient, msg); err != nil {
		queued = false
		e.log.Error("Failed to enqueue message", "id", msg.ID, "to", msg.Recipient, "error", err)
	}
	recipient, online := e.registry.Lookup(msg.Recipient)
	// Claim the entry before writing so a concurrent fetch cannot deliver it twice.
	claimed := false
	if online {
		claimed = true
		if queued {
			if err := e.queues.Remove(msg.Recipient, msg.ID); err != nil {
				claimed = false
				e.log.Error("Failed to claim queued message", "id", msg.ID, "error", err)
			}
		}
	}
	e.mu.Unlock()

	if !claimed {
		e.log.Debug("Message queued", "id", msg.ID, "to", msg.Recipient)
		return
	}

	if err := recipient.Send(protocol.Deliver(msg)); err != nil {
		e.log.Warn("Immediate delivery failed, keeping message queued", "id", msg.ID, "to", msg.Recipient, "error", err)
		e.requeue(msg.Recipient, msg)
		return
	}

	if err := sender.Send(protocol.StatusUpdate(msg.ID, models.StatusDelivered)); err != nil {
		e.log.Warn("Failed to report delivery", "id", msg.ID, "error", err)
	}
}

// Fetch drains the session's backlog onto its own connection and returns how
// many messages were written. Failed writes go back to the queue without
// aborting the rest of the batch.
func (e *Engine) Fetch(session *Session) int {
	e.mu.Lock()
	username := session.username
	if username == "" {
		e.mu.Unlock()
		return 0
	}
	msgs, err := e.queues.Drain(username)
	e.mu.Unlock()

	if err != nil {
		e.log.Error("Failed to drain queue", "user", username, "error", err)
		return 0
	}

	delivered := 0
	for _, msg := range msgs {
		if err := session.Send(protocol.Deliver(msg)); err != nil {
			e.log.Warn("Fetch delivery failed, requeueing", "id", msg.ID, "user", username, "error", err)
			e.requeue(username, msg)
			continue
		}
		delivered++
		e.notifyDelivered(msg)
	}
	return delivered
}

func (e *Engine) requeue(recipient string, msg models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.queues.Requeue(recipient, msg); err != nil {
		e.log.Error("Failed to requeue message", "id", msg.ID, "to", recipient, "error", err)
	}
}

func (e *Engine) notifyDelivered(msg models.Message) {
	e.mu.Lock()
	sender, ok := e.registry.Lookup(msg.Sender)
	e.mu.Unlock()
	if !ok {
		return
	}
	if err := sender.Send(protocol.StatusUpdate(msg.ID, models.StatusDelivered)); err != nil {
		e.log.Warn("Failed to report delivery", "id", msg.ID, "to", msg.Sender, "error", err)
	}
}

type Stats struct {
	Users  []string
	Queued map[string]int
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	queued, err := e.queues.Pending()
	if err != nil {
		e.log.Error("Failed to read queue sizes", "error", err)
		queued = map[string]int{}
	}
	return Stats{Users: e.registry.Usernames(), Queued: queued}
}
