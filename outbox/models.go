package outbox

import "time"

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusDead      Status = "dead"
)

// Message is written in the same transaction as the change it announces.
type Message struct {
	ID           string
	Topic        string
	PartitionKey string
	EventID      string
	Payload      []byte
}

// Record is a claimed, not yet published row.
type Record struct {
	ID           string
	Seq          int64
	Topic        string
	PartitionKey string
	EventID      string
	Payload      []byte
	Attempts     int
	CreatedAt    time.Time
}
