package models

// Status is the delivery state of a message as seen by its sender.
type Status string

const (
	StatusPending   Status = "pending"
	StatusServerAck Status = "server_ack"
	StatusDelivered Status = "delivered"
)

var statusRank = map[Status]int{
	StatusPending:   0,
	StatusServerAck: 1,
	StatusDelivered: 2,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Advances reports whether moving from s to next is a forward transition.
// Statuses never move backwards and never repeat.
func (s Status) Advances(next Status) bool {
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type Message struct {
	ID        string
	Sender    string
	Recipient string
	Content   string
	Timestamp string // sender wall-clock label, e.g. "15:04"
}
