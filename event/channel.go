// Package event provides a typed publish/subscribe channel that tolerates
// subscription changes made by handlers while a publish is in progress.
package event

import (
	"errors"
	"fmt"
)

// ErrHandlerFailure wraps any error returned by a handler during Publish.
var ErrHandlerFailure = errors.New("event handler failed")

// Handler wraps a callback so it has a stable identity for Subscribe and
// Unsubscribe. Create one with NewHandler and keep the pointer.
type Handler[T any] struct {
	fn func(sender any, args T) error
}

// NewHandler creates a handler from fn.
func NewHandler[T any](fn func(sender any, args T) error) *Handler[T] {
	return &Handler[T]{fn: fn}
}

// Invoke calls the handler directly.
func (h *Handler[T]) Invoke(sender any, args T) error {
	return h.fn(sender, args)
}

// pendingOp is a subscription change deferred until dispatch completes.
type pendingOp[T any] struct {
	handler *Handler[T]
	add     bool
}

// Channel is an ordered list of handlers for one kind of event.
//
// Delivery order is subscription order. Subscribe and Unsubscribe called while
// a Publish is running (from a handler, or from a nested Publish) are queued
// and applied in call order after the outermost Publish returns, so every
// dispatch sees a stable subscriber list.
//
// A Channel is not safe for concurrent use.
type Channel[T any] struct {
	name     string
	handlers []*Handler[T]
	pending  []pendingOp[T]
	depth    int // nested Publish calls currently running
}

// NewChannel creates an empty channel. The name appears in handler errors.
func NewChannel[T any](name string) *Channel[T] {
	return &Channel[T]{name: name}
}

// Name returns the channel name.
func (c *Channel[T]) Name() string { return c.name }

// Len returns the number of subscribed handlers.
// Changes queued during a dispatch are not counted until they are applied.
func (c *Channel[T]) Len() int { return len(c.handlers) }

// Dispatching reports whether a Publish is currently running.
func (c *Channel[T]) Dispatching() bool { return c.depth > 0 }

// Subscribe adds h to the end of the list.
// Returns true iff h was not already subscribed.
func (c *Channel[T]) Subscribe(h *Handler[T]) bool {
	if h == nil {
		return false
	}
	if c.depth > 0 {
		if c.projected(h) {
			return false
		}
		c.pending = append(c.pending, pendingOp[T]{handler: h, add: true})
		return true
	}
	if c.indexOf(h) >= 0 {
		return false
	}
	c.handlers = append(c.handlers, h)
	return true
}

// Unsubscribe removes h from the list.
// Returns true iff h was subscribed.
func (c *Channel[T]) Unsubscribe(h *Handler[T]) bool {
	if h == nil {
		return false
	}
	if c.depth > 0 {
		if !c.projected(h) {
			return false
		}
		c.pending = append(c.pending, pendingOp[T]{handler: h, add: false})
		return true
	}
	return c.remove(h)
}

// Publish invokes every subscribed handler in order.
// The first handler error stops the dispatch; the returned error wraps both
// ErrHandlerFailure and the handler's error.
func (c *Channel[T]) Publish(sender any, args T) error {
	c.depth++
	defer c.endDispatch()

	// The slice header is captured once; queued changes never touch it
	// while depth > 0.
	handlers := c.handlers
	for i, h := range handlers {
		if err := h.fn(sender, args); err != nil {
			return fmt.Errorf("%s: handler %d of %d: %w: %w", c.name, i+1, len(handlers), ErrHandlerFailure, err)
		}
	}
	return nil
}

func (c *Channel[T]) endDispatch() {
	c.depth--
	if c.depth > 0 || len(c.pending) == 0 {
		return
	}
	ops := c.pending
	c.pending = nil
	for _, op := range ops {
		if op.add {
			if c.indexOf(op.handler) < 0 {
				c.handlers = appendCopy(c.handlers, op.handler)
			}
		} else {
			c.remove(op.handler)
		}
	}
}

// projected reports whether h will be subscribed once pending ops are applied.
func (c *Channel[T]) projected(h *Handler[T]) bool {
	subscribed := c.indexOf(h) >= 0
	for _, op := range c.pending {
		if op.handler == h {
			subscribed = op.add
		}
	}
	return subscribed
}

func (c *Channel[T]) indexOf(h *Handler[T]) int {
	for i, existing := range c.handlers {
		if existing == h {
			return i
		}
	}
	return -1
}

// remove deletes h without mutating the backing array in place, so a slice
// captured by an earlier dispatch is never disturbed.
func (c *Channel[T]) remove(h *Handler[T]) bool {
	i := c.indexOf(h)
	if i < 0 {
		return false
	}
	next := make([]*Handler[T], 0, len(c.handlers)-1)
	next = append(next, c.handlers[:i]...)
	next = append(next, c.handlers[i+1:]...)
	c.handlers = next
	return true
}

func appendCopy[T any](list []*Handler[T], h *Handler[T]) []*Handler[T] {
	next := make([]*Handler[T], len(list), len(list)+1)
	copy(next, list)
	return append(next, h)
}
