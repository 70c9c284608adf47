package service

import "github.com/Strob0t/PartyLedger/internal/domain/event"

// DefaultReplayLimit is the number of domain events kept per topic.
const DefaultReplayLimit = 100

// replayBuffer keeps the most recent replayable events of one topic in
// insertion order. It is guarded by the owning topic's lock.
type replayBuffer struct {
	limit  int
	events []event.Event
}

func newReplayBuffer(limit int) *replayBuffer {
	if limit <= 0 {
		limit = DefaultReplayLimit
	}
	return &replayBuffer{limit: limit, events: make([]event.Event, 0, limit)}
}

// record appends ev, evicting the oldest event once the buffer is full.
func (b *replayBuffer) record(ev event.Event) {
	if len(b.events) == b.limit {
		copy(b.events, b.events[1:])
		b.events = b.events[:b.limit-1]
	}
	b.events = append(b.events, ev)
}

// since returns a copy of every event recorded strictly after lastID.
// An empty or unknown (already evicted) id yields nothing; the caller
// falls back to the snapshot.
func (b *replayBuffer) since(lastID string) []event.Event {
	if lastID == "" {
		return nil
	}
	for i := range b.events {
		if b.events[i].ID != lastID {
			continue
		}
		rest := b.events[i+1:]
		if len(rest) == 0 {
			return nil
		}
		out := make([]event.Event, len(rest))
		copy(out, rest)
		return out
	}
	return nil
}

func (b *replayBuffer) len() int { return len(b.events) }
