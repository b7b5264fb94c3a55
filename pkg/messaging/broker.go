package messaging

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

type subscription[T any] struct {
	ch     chan<- Message[T]
	topics []string
}

func (s subscription[T]) wants(topic string) bool {
	return len(s.topics) == 0 || slices.Contains(s.topics, topic)
}

// SimpleBroker implements the Broker interface.
// subscribers is keyed by subscriber ID
type SimpleBroker[T any] struct {
	subscribers map[string]subscription[T]
	mu          sync.RWMutex
}

// NewBroker creates a new message broker
func NewBroker[T any]() *SimpleBroker[T] {
	return &SimpleBroker[T]{
		subscribers: make(map[string]subscription[T]),
	}
}

// Publish sends a message to its recipients, or broadcasts it to every
// subscriber of the topic except the sender. Sends never block: a full
// channel drops the message and is reported in the returned error.
func (b *SimpleBroker[T]) Publish(msg Message[T]) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	recipients := msg.To
	if len(recipients) == 0 {
		for id := range b.subscribers {
			if id != msg.From {
				recipients = append(recipients, id)
			}
		}
		slices.Sort(recipients)
	}

	var errs []error
	for _, id := range recipients {
		sub, ok := b.subscribers[id]
		if !ok || !sub.wants(msg.Topic) {
			continue
		}

		select {
		case sub.ch <- msg:
		default:
			errs = append(errs, fmt.Errorf("recipient %s's channel is full", id))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers a subscriber for the given topics, or for every topic
// when none are given
func (b *SimpleBroker[T]) Subscribe(id string, ch chan<- Message[T], topics ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("subscriber %s is already subscribed", id)
	}

	b.subscribers[id] = subscription[T]{ch: ch, topics: topics}
	return nil
}

// Unsubscribe removes a subscription
func (b *SimpleBroker[T]) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("subscriber %s is not subscribed", id)
	}

	delete(b.subscribers, id)
	return nil
}

func (b *SimpleBroker[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *SimpleBroker[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]subscription[T])
}
