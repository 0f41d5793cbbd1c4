package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrClosed is returned when publishing to a closed bus or receiving from a
// closed, drained subscription.
var ErrClosed = errors.New("bus closed")

// Bus is a broadcast channel shared by one orchestrator, its suite runtimes
// and automation clients.
//
// Thread-safety: all methods are safe for concurrent use. Publication order
// is a total order: every subscriber observes the same sequence.
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers a new participant. It receives every message published
// after this call returns.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{bus: b, box: newMailbox()}
	if b.closed {
		sub.box.close()
		return sub
	}
	b.subs = append(b.subs, sub)
	return sub
}

// Publish validates msg and delivers it to every subscriber.
func (b *Bus) Publish(msg Message) error {
	if msg == nil {
		return &ValidationError{Message: "nil message"}
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	slog.Debug("bus publish", "type", msg.Type(), "subscribers", len(b.subs))
	for _, sub := range b.subs {
		sub.box.enqueue(msg)
	}
	return nil
}

// Close closes the bus and every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.box.close()
	}
	b.subs = nil
}

func (b *Bus) remove(target *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == target {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Subscription is one participant's view of the bus.
type Subscription struct {
	bus *Bus
	box *mailbox
}

// TryNext returns the next queued message without blocking.
func (s *Subscription) TryNext() (Message, bool) {
	return s.box.tryDequeue()
}

// Wait returns a channel that fires when messages may be available. It is
// closed once the subscription is closed. Use with TryNext:
//
//	select {
//	case <-ctx.Done():
//	case <-sub.Wait():
//	    // TryNext
//	}
func (s *Subscription) Wait() <-chan struct{} {
	return s.box.wait()
}

// Next blocks until a message is available, ctx is done, or the subscription
// is closed and drained.
func (s *Subscription) Next(ctx context.Context) (Message, error) {
	for {
		if msg, ok := s.box.tryDequeue(); ok {
			return msg, nil
		}
		if s.box.isClosed() {
			return nil, ErrClosed
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.box.wait():
		}
	}
}

// Len returns the number of undelivered messages.
func (s *Subscription) Len() int {
	return s.box.len()
}

// Closed reports whether the subscription stopped receiving.
func (s *Subscription) Closed() bool {
	return s.box.isClosed()
}

// Close unsubscribes. Already queued messages remain readable.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.box.close()
}
