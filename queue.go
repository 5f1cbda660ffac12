package orderproc

import (
	"github.com/huandu/skiplist"
	"github.com/shopspring/decimal"
)

// priceUnit holds the FIFO queue of resting orders at one price level.
type priceUnit struct {
	totalQuantity int64
	head          *Order
	tail          *Order
	count         int64
}

// PriceLevel is the aggregated view of one occupied price level.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Orders   int64           `json:"orders"`
}

type queue struct {
	side        Side
	totalOrders int64
	depths      int64
	depthList   *skiplist.SkipList
	orders      map[string]*Order
}

// newBuyerQueue creates a new queue for buy orders (bids).
// The orders are sorted by price in descending order (highest price first).
func newBuyerQueue() *queue {
	return &queue{
		side: Buy,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d2.Cmp(d1)
		})),
		orders: make(map[string]*Order),
	}
}

// newSellerQueue creates a new queue for sell orders (asks).
// The orders are sorted by price in ascending order (lowest price first).
func newSellerQueue() *queue {
	return &queue{
		side: Sell,
		depthList: skiplist.New(skiplist.GreaterThanFunc(func(lhs, rhs any) int {
			d1, _ := lhs.(decimal.Decimal)
			d2, _ := rhs.(decimal.Decimal)
			return d1.Cmp(d2)
		})),
		orders: make(map[string]*Order),
	}
}

// order finds a resting order by its ID.
func (q *queue) order(id string) *Order {
	return q.orders[id]
}

// insertOrder inserts an order into the queue, creating the price level
// if it does not exist yet.
func (q *queue) insertOrder(order *Order, isFront bool) {
	el := q.depthList.Get(order.Price)
	if el != nil {
		unit, _ := el.Value.(*priceUnit)
		if isFront {
			// Push Front
			order.next = unit.head
			order.prev = nil
			if unit.head != nil {
				unit.head.prev = order
			}
			unit.head = order
			if unit.tail == nil {
				unit.tail = order
			}
		} else {
			// Push Back
			order.prev = unit.tail
			order.next = nil
			if unit.tail != nil {
				unit.tail.next = order
			}
			unit.tail = order
			if unit.head == nil {
				unit.head = order
			}
		}

		unit.totalQuantity += order.Quantity
		unit.count++
		q.orders[order.ID] = order
		q.totalOrders++
	} else {
		unit := &priceUnit{
			head:          order,
			tail:          order,
			totalQuantity: order.Quantity,
			count:         1,
		}
		order.next = nil
		order.prev = nil

		q.orders[order.ID] = order
		q.depthList.Set(order.Price, unit)

		q.totalOrders++
		q.depths++
	}
}

// removeOrder removes an order from the queue by price and ID.
// The price level is removed as soon as its queue becomes empty.
func (q *queue) removeOrder(price decimal.Decimal, id string) {
	el := q.depthList.Get(price)
	if el == nil {
		return
	}
	unit, _ := el.Value.(*priceUnit)

	order, ok := q.orders[id]
	if !ok {
		return
	}

	// Remove from linked list
	if order.prev != nil {
		order.prev.next = order.next
	} else {
		unit.head = order.next
	}

	if order.next != nil {
		order.next.prev = order.prev
	} else {
		unit.tail = order.prev
	}

	// Clear pointers to avoid leaks
	order.next = nil
	order.prev = nil

	unit.totalQuantity -= order.Quantity
	unit.count--
	delete(q.orders, id)
	q.totalOrders--

	if unit.count == 0 {
		q.depthList.RemoveElement(el)
		q.depths--
	}
}

// peekHeadOrder returns the order at the front of the queue (best price)
// without removing it.
func (q *queue) peekHeadOrder() *Order {
	el := q.depthList.Front()
	if el == nil {
		return nil
	}

	unit, _ := el.Value.(*priceUnit)
	return unit.head
}

// popHeadOrder removes and returns the order at the front of the queue.
func (q *queue) popHeadOrder() *Order {
	ord := q.peekHeadOrder()

	if ord != nil {
		q.removeOrder(ord.Price, ord.ID)
	}

	return ord
}

// orderCount returns the total number of orders in the queue.
func (q *queue) orderCount() int64 {
	return q.totalOrders
}

// depthCount returns the number of price levels in the queue.
func (q *queue) depthCount() int64 {
	return q.depths
}

// levels aggregates every occupied price level in book order (best
// price first).
func (q *queue) levels() []PriceLevel {
	result := make([]PriceLevel, 0, q.depths)

	el := q.depthList.Front()
	for el != nil {
		unit, _ := el.Value.(*priceUnit)
		price, _ := el.Key().(decimal.Decimal)
		result = append(result, PriceLevel{
			Price:    price,
			Quantity: unit.totalQuantity,
			Orders:   unit.count,
		})
		el = el.Next()
	}

	return result
}
