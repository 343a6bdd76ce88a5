package client

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"

	"relay/models"
)

var (
	ErrUnknownMessage = errors.New("status for unknown message")
	ErrStaleStatus    = errors.New("status does not advance")
)

// Entry is what the client remembers about one message it submitted.
type Entry struct {
	ID          string
	Recipient   string
	Content     string
	Status      models.Status
	SubmittedAt time.Time
}

// StatusTable tracks the delivery status of submitted messages. It is
// written by the command processor and the listener concurrently.
type StatusTable struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewStatusTable() *StatusTable {
	return &StatusTable{entries: make(map[string]*Entry)}
}

// Track records a new message as pending.
func (t *StatusTable) Track(id, recipient, content string, at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[id] = &Entry{
		ID:          id,
		Recipient:   recipient,
		Content:     content,
		Status:      models.StatusPending,
		SubmittedAt: at,
	}
}

// Forget drops an entry whose send never reached the server.
func (t *StatusTable) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Apply moves an entry to status and returns the updated entry. Statuses only
// move forward: a regression or repeat returns ErrStaleStatus and leaves the
// entry alone. Ids never tracked return ErrUnknownMessage.
func (t *StatusTable) Apply(id string, status models.Status) (Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[id]
	if !ok {
		return Entry{}, ErrUnknownMessage
	}
	if !entry.Status.Advances(status) {
		return *entry, ErrStaleStatus
	}
	entry.Status = status
	return *entry, nil
}

func (t *StatusTable) Get(id string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns a copy of every entry, oldest submission first.
func (t *StatusTable) Snapshot() []Entry {
	t.mu.RLock()
	entries := lo.Map(lo.Values(t.entries), func(e *Entry, _ int) Entry { return *e })
	t.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].SubmittedAt.Equal(entries[j].SubmittedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].SubmittedAt.Before(entries[j].SubmittedAt)
	})
	return entries
}
