package orderproc

import (
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"
)

// OrderPublisher is the pipeline's ingress. Many goroutines may submit
// concurrently; each submission claims a ring buffer slot, overwrites it
// completely and commits it.
type OrderPublisher struct {
	ring *RingBuffer[OrderEvent]
}

// NewOrderPublisher creates a publisher over the pipeline's ring buffer.
func NewOrderPublisher(ring *RingBuffer[OrderEvent]) *OrderPublisher {
	return &OrderPublisher{ring: ring}
}

// Submit enqueues an order request and returns its freshly generated
// order ID immediately. Fire-and-forget: the outcome (rejected, pending
// or matched) is observable only through the egress sinks. Blocks while
// the buffer is full; returns ErrShutdown once shutdown has begun.
func (p *OrderPublisher) Submit(symbol string, side Side, price decimal.Decimal, quantity int64, traderID string) (string, error) {
	orderID := xid.New().String()

	seq, slot := p.ring.Claim()
	if seq < 0 {
		return "", ErrShutdown
	}

	// Slots are dirty until overwritten: assigning the whole struct
	// resets every field left over from the previous cycle.
	*slot = OrderEvent{
		OrderID:   orderID,
		Symbol:    symbol,
		Side:      side,
		Price:     price,
		Quantity:  quantity,
		TraderID:  traderID,
		Timestamp: time.Now().UnixNano(),
		Status:    EventStatusNewOrder,
	}

	p.ring.Commit(seq)
	return orderID, nil
}
