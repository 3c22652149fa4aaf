package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformed marks a message whose value is not the JSON its type
	// promises. Redelivering it cannot help.
	ErrMalformed = errors.New("malformed message")
	// ErrUnroutable marks a message whose type has no handler.
	ErrUnroutable = errors.New("no handler for message type")
)

// Message is one consumed record. Type is read from the "type" field of the
// JSON value.
type Message struct {
	Key       string
	Type      string
	Value     []byte
	Partition int
	Offset    int64
}

// MessageHandler processes one routed message.
type MessageHandler func(ctx context.Context, msg Message) error

// Router dispatches messages to handlers by event type.
type Router struct {
	handlers map[string]MessageHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]MessageHandler)}
}

// Handle registers h for every listed event type, replacing earlier
// registrations.
func (r *Router) Handle(h MessageHandler, eventTypes ...string) {
	for _, t := range eventTypes {
		r.handlers[t] = h
	}
}

// HandleJSON registers fn for the listed event types with the value decoded
// into T.
func HandleJSON[T any](r *Router, fn func(ctx context.Context, key string, event T) error, eventTypes ...string) {
	r.Handle(func(ctx context.Context, msg Message) error {
		event, err := DecodeJSON[T](msg.Value)
		if err != nil {
			return fmt.Errorf("%s event at offset %d: %w", msg.Type, msg.Offset, err)
		}
		return fn(ctx, msg.Key, event)
	}, eventTypes...)
}

// Dispatch fills in msg.Type and hands msg to its handler.
func (r *Router) Dispatch(ctx context.Context, msg Message) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg.Value, &envelope); err != nil {
		return fmt.Errorf("reading type at offset %d: %w: %w", msg.Offset, ErrMalformed, err)
	}
	msg.Type = envelope.Type
	h, ok := r.handlers[msg.Type]
	if !ok {
		return fmt.Errorf("type %q at offset %d: %w", msg.Type, msg.Offset, ErrUnroutable)
	}
	return h(ctx, msg)
}

// DecodeJSON unmarshals a message value into T. Failures wrap ErrMalformed.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w: %w", ErrMalformed, err)
	}
	return result, nil
}
