package kafka

import "context"

// Publisher produces an already-addressed event.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Topic binds a typed event to one topic. Events with the same key land on
// the same partition, preserving per-key order.
type Topic[T any] struct {
	publisher Publisher
	name      string
	key       func(T) string
}

// NewTopic returns a typed publisher for name.
func NewTopic[T any](publisher Publisher, name string, key func(T) string) *Topic[T] {
	return &Topic[T]{publisher: publisher, name: name, key: key}
}

// Name returns the topic name.
func (t *Topic[T]) Name() string { return t.name }

// Publish produces event to the bound topic.
func (t *Topic[T]) Publish(ctx context.Context, event T) error {
	return t.publisher.Publish(ctx, t.name, t.key(event), event)
}
