package orderproc

// OrderBook holds the resting orders for a single symbol: a bid side
// ordered best (highest) price first, an ask side ordered best (lowest)
// price first, FIFO within each price level.
//
// The book has no internal locking. All mutation happens on the single
// Match stage goroutine; see MatchingEngine.
type OrderBook struct {
	symbol   string
	bidQueue *queue
	askQueue *queue
}

// NewOrderBook creates an empty order book for the symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{
		symbol:   symbol,
		bidQueue: newBuyerQueue(),
		askQueue: newSellerQueue(),
	}
}

// Symbol returns the symbol this book belongs to.
func (book *OrderBook) Symbol() string {
	return book.symbol
}

// order looks up a resting order by ID on either side.
func (book *OrderBook) order(id string) *Order {
	if ord := book.bidQueue.order(id); ord != nil {
		return ord
	}
	return book.askQueue.order(id)
}

// restingOrders returns the number of orders currently resting on both sides.
func (book *OrderBook) restingOrders() int64 {
	return book.bidQueue.orderCount() + book.askQueue.orderCount()
}

// BookSnapshot is a read-only aggregated view of one symbol's book:
// per occupied price level the total resting quantity and order count.
// Asks are ordered ascending, bids descending.
type BookSnapshot struct {
	Symbol string       `json:"symbol"`
	Asks   []PriceLevel `json:"asks"`
	Bids   []PriceLevel `json:"bids"`
}

// Snapshot aggregates the book's occupied price levels. Consistency is
// best-effort when called concurrently with matching; all mutation is
// confined to the Match stage goroutine.
func (book *OrderBook) Snapshot() *BookSnapshot {
	return &BookSnapshot{
		Symbol: book.symbol,
		Asks:   book.askQueue.levels(),
		Bids:   book.bidQueue.levels(),
	}
}
