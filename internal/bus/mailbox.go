package bus

import "sync"

// mailbox is a subscriber's unbounded FIFO.
//
// Publishers never block: a run may register an arbitrary number of tests
// before any of them is executed. A buffered signal channel of size one wakes
// the consumer; multiple signals coalesce.
type mailbox struct {
	mu       sync.Mutex
	messages []Message
	closed   bool
	signal   chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{
		messages: make([]Message, 0, 64),
		signal:   make(chan struct{}, 1),
	}
}

// enqueue appends msg. Returns false once the mailbox is closed.
func (m *mailbox) enqueue(msg Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return false
	}
	m.messages = append(m.messages, msg)

	select {
	case m.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue pops the front message without blocking.
func (m *mailbox) tryDequeue() (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.messages) == 0 {
		return nil, false
	}
	msg := m.messages[0]
	// Clear the slot so the backing array does not pin delivered messages.
	m.messages[0] = nil
	if len(m.messages) == 1 {
		m.messages = m.messages[:0]
	} else {
		m.messages = m.messages[1:]
	}
	return msg, true
}

func (m *mailbox) wait() <-chan struct{} {
	return m.signal
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}

func (m *mailbox) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// close stops further delivery and wakes any waiter. Messages already queued
// can still be drained.
func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	m.closed = true
	close(m.signal)
}
