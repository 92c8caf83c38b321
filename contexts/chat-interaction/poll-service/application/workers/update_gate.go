package workers

import "sync"

// UpdateGate orders replace_original deliveries per poll. Vote workers run
// concurrently, so a render of version 4 can reach the presentation layer
// after version 5; the gate serializes deliveries for one poll and drops
// any render not newer than the last one delivered.
//
// Slots are kept for the life of the process, one per poll that has seen
// a vote.
type UpdateGate struct {
	mu    sync.Mutex
	slots map[string]*updateSlot
}

type updateSlot struct {
	mu        sync.Mutex
	delivered int64
	seen      bool
}

func NewUpdateGate() *UpdateGate {
	return &UpdateGate{slots: make(map[string]*updateSlot)}
}

// Deliver runs deliver when version is newer than the last version
// delivered for pollID. It reports whether deliver ran. A failed delivery
// does not advance the poll's version.
func (g *UpdateGate) Deliver(pollID string, version int64, deliver func() error) (bool, error) {
	slot := g.slot(pollID)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	if slot.seen && version <= slot.delivered {
		return false, nil
	}
	if err := deliver(); err != nil {
		return true, err
	}
	slot.delivered = version
	slot.seen = true
	return true, nil
}

func (g *UpdateGate) slot(pollID string) *updateSlot {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots == nil {
		g.slots = make(map[string]*updateSlot)
	}
	slot, ok := g.slots[pollID]
	if !ok {
		slot = &updateSlot{}
		g.slots[pollID] = slot
	}
	return slot
}
