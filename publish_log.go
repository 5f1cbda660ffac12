package orderproc

import "sync"

// BookUpdateSink receives every book mutation (opens and match
// consumptions) produced by the matching engine. It is called from the
// single Match stage goroutine after a whole order's mutations are
// applied, so updates arrive in deterministic book order.
type BookUpdateSink interface {
	Publish(...BookUpdate)
}

// MemoryBookUpdateSink stores updates in memory, useful for testing.
type MemoryBookUpdateSink struct {
	mu      sync.RWMutex
	Updates []BookUpdate
}

// NewMemoryBookUpdateSink creates a new MemoryBookUpdateSink.
func NewMemoryBookUpdateSink() *MemoryBookUpdateSink {
	return &MemoryBookUpdateSink{
		Updates: make([]BookUpdate, 0),
	}
}

// Publish appends updates to the in-memory slice.
func (m *MemoryBookUpdateSink) Publish(updates ...BookUpdate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, updates...)
}

// Count returns the number of updates stored.
func (m *MemoryBookUpdateSink) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Updates)
}

// Get returns the update at the specified index.
func (m *MemoryBookUpdateSink) Get(index int) BookUpdate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Updates[index]
}

// DiscardBookUpdateSink discards all updates.
type DiscardBookUpdateSink struct {
}

// NewDiscardBookUpdateSink creates a new DiscardBookUpdateSink.
func NewDiscardBookUpdateSink() *DiscardBookUpdateSink {
	return &DiscardBookUpdateSink{}
}

// Publish does nothing.
func (d *DiscardBookUpdateSink) Publish(updates ...BookUpdate) {

}
