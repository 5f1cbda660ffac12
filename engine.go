package orderproc

import (
	"sync"
	"sync/atomic"
	"time"
)

// MatchingEngine manages one order book per symbol and matches incoming
// orders against them using price-time priority.
//
// Books live in a shared map but follow the single-writer principle: the
// engine is only ever driven from the pipeline's Match stage goroutine,
// so book state needs no locking. Snapshot reads from other goroutines
// are safe but best-effort.
type MatchingEngine struct {
	orderbooks sync.Map // symbol -> *OrderBook
	tradeID    atomic.Uint64
	updates    BookUpdateSink
}

// NewMatchingEngine creates a matching engine. Book updates are reported
// through the given sink; pass nil to discard them.
func NewMatchingEngine(updates BookUpdateSink) *MatchingEngine {
	if updates == nil {
		updates = NewDiscardBookUpdateSink()
	}
	return &MatchingEngine{
		updates: updates,
	}
}

// Book returns the order book for a symbol, or nil if no order for that
// symbol has been processed yet.
func (engine *MatchingEngine) Book(symbol string) *OrderBook {
	book, found := engine.orderbooks.Load(symbol)
	if !found {
		return nil
	}

	orderbook, _ := book.(*OrderBook)
	return orderbook
}

// Snapshot returns the aggregated book view for a symbol. The second
// return value is false when the symbol has never been seen.
func (engine *MatchingEngine) Snapshot(symbol string) (*BookSnapshot, bool) {
	book := engine.Book(symbol)
	if book == nil {
		return nil, false
	}
	return book.Snapshot(), true
}

// book resolves or lazily creates the book for a symbol.
func (engine *MatchingEngine) book(symbol string) *OrderBook {
	if book, found := engine.orderbooks.Load(symbol); found {
		return book.(*OrderBook)
	}

	book, _ := engine.orderbooks.LoadOrStore(symbol, NewOrderBook(symbol))
	return book.(*OrderBook)
}

// MatchOrder matches the event's order against the symbol's book and
// mutates book state accordingly. It returns the trades in execution
// order (possibly empty) and sets the event status to
// EventStatusMatched (with the first trade's price) or
// EventStatusPending.
//
// Price-time priority: a BUY crosses while its price >= the best ask,
// a SELL while its price <= the best bid; within a level the oldest
// resting order fills first. The execution price is always the maker's.
// Any residual quantity rests in the book at the order's own price.
func (engine *MatchingEngine) MatchOrder(event *OrderEvent) []*TradeExecution {
	book := engine.book(event.Symbol)

	incoming := &Order{
		ID:        event.OrderID,
		Symbol:    event.Symbol,
		Side:      event.Side,
		Price:     event.Price,
		Quantity:  event.Quantity,
		TraderID:  event.TraderID,
		Timestamp: event.Timestamp,
		Status:    OrderStatusNew,
	}

	var myQueue, targetQueue *queue
	if incoming.Side == Buy {
		myQueue = book.bidQueue
		targetQueue = book.askQueue
	} else {
		myQueue = book.askQueue
		targetQueue = book.bidQueue
	}

	trades := make([]*TradeExecution, 0, 4)
	bookUpdates := make([]BookUpdate, 0, 4)
	now := time.Now().UnixNano()

	for incoming.Quantity > 0 {
		maker := targetQueue.peekHeadOrder()
		if maker == nil {
			break
		}

		// Crossable check: ties are crossable, comparison is exact.
		if incoming.Side == Buy && incoming.Price.LessThan(maker.Price) ||
			incoming.Side == Sell && incoming.Price.GreaterThan(maker.Price) {
			break
		}

		// Pop before mutating quantities so level bookkeeping stays exact.
		maker = targetQueue.popHeadOrder()

		tradeQty := incoming.Quantity
		if maker.Quantity < tradeQty {
			tradeQty = maker.Quantity
		}

		trades = append(trades, engine.newTrade(incoming, maker, tradeQty, now))
		bookUpdates = append(bookUpdates, BookUpdate{
			Type:     BookUpdateMatch,
			Symbol:   book.symbol,
			Side:     maker.Side,
			Price:    maker.Price,
			SizeDiff: -tradeQty,
		})

		incoming.Quantity -= tradeQty
		maker.Quantity -= tradeQty

		if incoming.Quantity == 0 {
			incoming.Status = OrderStatusFilled
		} else {
			incoming.Status = OrderStatusPartial
		}

		if maker.Quantity == 0 {
			// Already removed from queue and registry by the pop.
			maker.Status = OrderStatusFilled
		} else {
			maker.Status = OrderStatusPartial
			targetQueue.insertOrder(maker, true)
		}
	}

	// Residual rests in the book at its own price level.
	if incoming.Quantity > 0 {
		myQueue.insertOrder(incoming, false)
		bookUpdates = append(bookUpdates, BookUpdate{
			Type:     BookUpdateOpen,
			Symbol:   book.symbol,
			Side:     incoming.Side,
			Price:    incoming.Price,
			SizeDiff: incoming.Quantity,
		})
	}

	if len(trades) > 0 {
		event.Status = EventStatusMatched
		event.ExecutionPrice = trades[0].ExecutionPrice
	} else {
		event.Status = EventStatusPending
	}

	if len(bookUpdates) > 0 {
		engine.updates.Publish(bookUpdates...)
	}

	return trades
}

// newTrade builds an immutable TradeExecution for a fill between the
// incoming (taker) order and a resting (maker) order.
func (engine *MatchingEngine) newTrade(taker, maker *Order, quantity int64, now int64) *TradeExecution {
	trade := &TradeExecution{
		TradeID:           engine.tradeID.Add(1),
		Symbol:            taker.Symbol,
		ExecutionPrice:    maker.Price,
		ExecutionQuantity: quantity,
		Timestamp:         now,
	}

	if taker.Side == Buy {
		trade.BuyOrderID = taker.ID
		trade.BuyTraderID = taker.TraderID
		trade.SellOrderID = maker.ID
		trade.SellTraderID = maker.TraderID
	} else {
		trade.BuyOrderID = maker.ID
		trade.BuyTraderID = maker.TraderID
		trade.SellOrderID = taker.ID
		trade.SellTraderID = taker.TraderID
	}

	return trade
}

// LastTradeID returns the most recently assigned trade ID.
func (engine *MatchingEngine) LastTradeID() uint64 {
	return engine.tradeID.Load()
}
