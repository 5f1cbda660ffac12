package orderproc

import (
	"sync"

	"github.com/igrmk/treemap/v2"
	"github.com/shopspring/decimal"
)

// AggregatedDepth maintains a simplified view of one symbol's book,
// tracking only price levels and their aggregated quantities. It is
// built for downstream consumers that rebuild depth from the book
// update stream instead of touching the live book. It implements
// BookUpdateSink, so it can be wired directly into the pipeline.
type AggregatedDepth struct {
	symbol string

	mu  sync.RWMutex
	ask *treemap.TreeMap[decimal.Decimal, int64]
	bid *treemap.TreeMap[decimal.Decimal, int64]
}

// NewAggregatedDepth creates an empty depth view for the symbol.
// Updates for other symbols are ignored.
func NewAggregatedDepth(symbol string) *AggregatedDepth {
	less := func(a, b decimal.Decimal) bool {
		return a.LessThan(b)
	}
	return &AggregatedDepth{
		symbol: symbol,
		ask:    treemap.NewWithKeyCompare[decimal.Decimal, int64](less),
		bid:    treemap.NewWithKeyCompare[decimal.Decimal, int64](less),
	}
}

// Publish applies book updates to the depth view. Levels whose size
// drops to zero are removed.
func (ad *AggregatedDepth) Publish(updates ...BookUpdate) {
	ad.mu.Lock()
	defer ad.mu.Unlock()

	for _, update := range updates {
		if update.Symbol != ad.symbol {
			continue
		}

		side := ad.bid
		if update.Side == Sell {
			side = ad.ask
		}

		size, _ := side.Get(update.Price)
		size += update.SizeDiff
		if size <= 0 {
			side.Del(update.Price)
			continue
		}
		side.Set(update.Price, size)
	}
}

// Depth returns the aggregated quantity at a specific price level for
// the given side, or zero if the level does not exist.
func (ad *AggregatedDepth) Depth(side Side, price decimal.Decimal) int64 {
	ad.mu.RLock()
	defer ad.mu.RUnlock()

	tree := ad.bid
	if side == Sell {
		tree = ad.ask
	}
	size, _ := tree.Get(price)
	return size
}

// Best returns the best price level for the side: the highest bid or
// the lowest ask. The second return value is false when the side is
// empty.
func (ad *AggregatedDepth) Best(side Side) (PriceLevel, bool) {
	ad.mu.RLock()
	defer ad.mu.RUnlock()

	if side == Sell {
		it := ad.ask.Iterator()
		if !it.Valid() {
			return PriceLevel{}, false
		}
		return PriceLevel{Price: it.Key(), Quantity: it.Value()}, true
	}

	it := ad.bid.Reverse()
	if !it.Valid() {
		return PriceLevel{}, false
	}
	return PriceLevel{Price: it.Key(), Quantity: it.Value()}, true
}

// Levels returns the occupied levels for the side in book order (best
// price first).
func (ad *AggregatedDepth) Levels(side Side) []PriceLevel {
	ad.mu.RLock()
	defer ad.mu.RUnlock()

	var result []PriceLevel
	if side == Sell {
		for it := ad.ask.Iterator(); it.Valid(); it.Next() {
			result = append(result, PriceLevel{Price: it.Key(), Quantity: it.Value()})
		}
		return result
	}

	for it := ad.bid.Reverse(); it.Valid(); it.Next() {
		result = append(result, PriceLevel{Price: it.Key(), Quantity: it.Value()})
	}
	return result
}
