package service

import (
	"sync"

	"github.com/Strob0t/PartyLedger/internal/domain/event"
)

// mailbox is an unbounded FIFO owned by one subscription. Producers never
// block on it; the stream driver waits on ready and then drains.
type mailbox struct {
	mu     sync.Mutex
	queue  []event.Event
	closed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

// push enqueues ev and wakes the reader. It returns false once the mailbox
// has been closed.
func (m *mailbox) push(ev event.Event) bool {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false
	}
	m.queue = append(m.queue, ev)
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
	return true
}

// drain hands out everything queued so far, oldest first.
func (m *mailbox) drain() []event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.queue
	m.queue = nil
	return q
}

func (m *mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.queue = nil
}

func (m *mailbox) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}
