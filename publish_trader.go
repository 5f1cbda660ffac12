package orderproc

import "sync"

// PublishTrader is the egress for trade executions. Implementations are
// called from the single Publish stage goroutine, in execution order.
type PublishTrader interface {
	PublishTrades(...*TradeExecution)
}

// MemoryPublishTrader stores trades in memory, useful for testing.
type MemoryPublishTrader struct {
	mu     sync.RWMutex
	Trades []*TradeExecution
}

// NewMemoryPublishTrader creates a new MemoryPublishTrader.
func NewMemoryPublishTrader() *MemoryPublishTrader {
	return &MemoryPublishTrader{
		Trades: make([]*TradeExecution, 0),
	}
}

// PublishTrades appends trades to the in-memory slice.
func (m *MemoryPublishTrader) PublishTrades(trades ...*TradeExecution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Trades = append(m.Trades, trades...)
}

// Count returns the number of trades stored.
func (m *MemoryPublishTrader) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.Trades)
}

// Get returns the trade at the specified index.
func (m *MemoryPublishTrader) Get(index int) *TradeExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.Trades[index]
}

// All returns a copy of all trades stored.
func (m *MemoryPublishTrader) All() []*TradeExecution {
	m.mu.RLock()
	defer m.mu.RUnlock()

	trades := make([]*TradeExecution, len(m.Trades))
	copy(trades, m.Trades)
	return trades
}

// DiscardPublishTrader discards all trades, useful for benchmarking.
type DiscardPublishTrader struct {
}

// NewDiscardPublishTrader creates a new DiscardPublishTrader.
func NewDiscardPublishTrader() *DiscardPublishTrader {
	return &DiscardPublishTrader{}
}

// PublishTrades does nothing.
func (p *DiscardPublishTrader) PublishTrades(trades ...*TradeExecution) {

}
