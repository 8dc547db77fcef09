package events

import "context"

// Message is one event bound for the bus. Key selects the partition so
// every message for a dispute lands on the same one.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
	Headers map[string]string
}

// Publisher delivers a message to the bus. A nil error means the broker
// acknowledged it.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
}
