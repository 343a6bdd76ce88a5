package server

import (
	"slices"

	"github.com/samber/lo"

	"relay/models"
)

// QueueStore holds the per-recipient backlog of undelivered messages.
// Implementations need not be safe for concurrent use: every call is made
// with Engine's lock held.
type QueueStore interface {
	// Enqueue appends msg to the recipient's backlog, creating it if absent.
	Enqueue(recipient string, msg models.Message) error
	// Drain removes and returns the whole backlog in FIFO order.
	Drain(username string) ([]models.Message, error)
	// Remove deletes the entry with the given id. Absent ids are a no-op.
	Remove(recipient, id string) error
	// Requeue puts msg back at the end of the backlog.
	Requeue(recipient string, msg models.Message) error
	// Pending reports backlog sizes per recipient.
	Pending() (map[string]int, error)
}

// MemoryQueue keeps backlogs in process memory.
type MemoryQueue struct {
	backlogs map[string][]models.Message
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{backlogs: make(map[string][]models.Message)}
}

func (q *MemoryQueue) Enqueue(recipient string, msg models.Message) error {
	q.backlogs[recipient] = append(q.backlogs[recipient], msg)
	return nil
}

func (q *MemoryQueue) Drain(username string) ([]models.Message, error) {
	msgs := q.backlogs[username]
	q.backlogs[username] = []models.Message{}
	return msgs, nil
}

func (q *MemoryQueue) Remove(recipient, id string) error {
	backlog := q.backlogs[recipient]
	_, idx, ok := lo.FindIndexOf(backlog, func(m models.Message) bool {
		return m.ID == id
	})
	if !ok {
		return nil
	}
	q.backlogs[recipient] = slices.Delete(backlog, idx, idx+1)
	return nil
}

func (q *MemoryQueue) Requeue(recipient string, msg models.Message) error {
	return q.Enqueue(recipient, msg)
}

func (q *MemoryQueue) Pending() (map[string]int, error) {
	return lo.MapValues(q.backlogs, func(backlog []models.Message, _ string) int {
		return len(backlog)
	}), nil
}
