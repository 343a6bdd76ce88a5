package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"relay/models"
)

// QueueStore keeps recipient backlogs in a sqlite table. The table is emptied
// on open: backlogs never outlive a server run.
type QueueStore struct {
	conn *sql.DB
}

func New(path string) (*QueueStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases shared and serializes access
	conn.SetMaxOpenConns(1)

	db := &QueueStore{conn: conn}
	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	return db, nil
}

func (db *QueueStore) Close() error {
	return db.conn.Close()
}

func (db *QueueStore) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS queue (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			recipient TEXT NOT NULL,
			msg_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_queue_recipient ON queue(recipient, seq)`,
		`DELETE FROM queue`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("init queue schema: %w", err)
		}
	}
	return nil
}

func (db *QueueStore) Enqueue(recipient string, msg models.Message) error {
	_, err := db.conn.Exec(
		"INSERT INTO queue (recipient, msg_id, sender, content, timestamp) VALUES (?, ?, ?, ?, ?)",
		recipient, msg.ID, msg.Sender, msg.Content, msg.Timestamp,
	)
	return err
}

// Drain reads and deletes the backlog inside one transaction.
func (db *QueueStore) Drain(username string) ([]models.Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		"SELECT msg_id, sender, recipient, content, timestamp FROM queue WHERE recipient = ? ORDER BY seq ASC",
		username,
	)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Recipient, &m.Content, &m.Timestamp); err != nil {
			rows.Close()
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if _, err := tx.Exec("DELETE FROM queue WHERE recipient = ?", username); err != nil {
		return nil, err
	}

	return messages, tx.Commit()
}

// Remove deletes the oldest entry with the given id, if any.
func (db *QueueStore) Remove(recipient, id string) error {
	_, err := db.conn.Exec(
		`DELETE FROM queue WHERE seq = (
			SELECT seq FROM queue WHERE recipient = ? AND msg_id = ? ORDER BY seq ASC LIMIT 1
		)`,
		recipient, id,
	)
	return err
}

func (db *QueueStore) Requeue(recipient string, msg models.Message) error {
	return db.Enqueue(recipient, msg)
}

func (db *QueueStore) Pending() (map[string]int, error) {
	rows, err := db.conn.Query("SELECT recipient, COUNT(*) FROM queue GROUP BY recipient")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var recipient string
		var count int
		if err := rows.Scan(&recipient, &count); err != nil {
			return nil, err
		}
		counts[recipient] = count
	}

	return counts, rows.Err()
}
