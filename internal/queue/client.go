package queue

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send after the queue stopped accepting work.
var ErrClosed = errors.New("queue closed")

// ErrFull is returned by Send when the in-process backlog is at capacity.
var ErrFull = errors.New("queue full")

// Client sends messages to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}

// Handler processes one message.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
