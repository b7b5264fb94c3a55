package messaging

import (
	"time"
)

// TopicSnapshots carries one history snapshot per simulated day.
const TopicSnapshots = "snapshots"

// Message is one published value
type Message[T any] struct {
	From      string    // ID of the publisher
	To        []string  // subscriber IDs (empty means broadcast)
	Topic     string    // subscribers filter on this
	Content   T         // the payload
	Timestamp time.Time // when the message was published
}

// Broker routes messages from publishers to subscribers
type Broker[T any] interface {
	// Publish sends a message to the matching subscribers
	Publish(msg Message[T]) error
	// Subscribe registers a channel for the given topics (none means all)
	Subscribe(id string, ch chan<- Message[T], topics ...string) error
	// Unsubscribe removes a subscription
	Unsubscribe(id string) error
}
