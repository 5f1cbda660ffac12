package orderproc

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rejection reasons carried on the event when a check fails. Rejection
// is a terminal status, not an error; the pipeline keeps going.
const (
	ReasonInvalidOrder     = "Invalid price or quantity"
	ReasonExposureExceeded = "Exposure limit exceeded"
)

// DefaultExposureLimit is the risk check's notional limit when none is
// configured.
var DefaultExposureLimit = decimal.NewFromInt(1_000_000)

// OrderValidator is the first stage. It rejects orders with a
// non-positive price or quantity.
type OrderValidator struct{}

func (v *OrderValidator) OnEvent(event *OrderEvent) {
	if event.Status != EventStatusNewOrder {
		return
	}

	if event.Price.LessThanOrEqual(decimal.Zero) || event.Quantity <= 0 {
		event.Status = EventStatusRejected
		event.Reason = ReasonInvalidOrder
		logger.Debug().Str("order_id", event.OrderID).Str("reason", event.Reason).Msg("order rejected")
		return
	}

	event.Status = EventStatusValidated
}

// RiskChecker is the second stage. It rejects orders whose notional
// exposure (price * quantity) exceeds the configured limit. Only the
// instantaneous order notional is considered, not the trader's
// existing positions.
type RiskChecker struct {
	exposureLimit decimal.Decimal
}

// NewRiskChecker creates a risk checker. A zero limit falls back to
// DefaultExposureLimit.
func NewRiskChecker(exposureLimit decimal.Decimal) *RiskChecker {
	if exposureLimit.LessThanOrEqual(decimal.Zero) {
		exposureLimit = DefaultExposureLimit
	}
	return &RiskChecker{exposureLimit: exposureLimit}
}

func (rc *RiskChecker) OnEvent(event *OrderEvent) {
	if event.Status != EventStatusValidated {
		return
	}

	exposure := event.Price.Mul(decimal.NewFromInt(event.Quantity))
	if exposure.GreaterThan(rc.exposureLimit) {
		event.Status = EventStatusRejected
		event.Reason = ReasonExposureExceeded
		logger.Debug().Str("order_id", event.OrderID).Str("exposure", exposure.String()).Msg("order rejected")
		return
	}

	event.Status = EventStatusRiskApproved
}

// OrderMatcher is the third stage. It delegates to the matching engine,
// which mutates the symbol's book and sets the event status to matched
// or pending. The resulting trades ride on the event to the Publish
// stage.
type OrderMatcher struct {
	engine *MatchingEngine
}

// NewOrderMatcher creates the matcher stage around an engine.
func NewOrderMatcher(engine *MatchingEngine) *OrderMatcher {
	return &OrderMatcher{engine: engine}
}

func (m *OrderMatcher) OnEvent(event *OrderEvent) {
	if event.Status != EventStatusRiskApproved {
		return
	}

	event.Trades = m.engine.MatchOrder(event)
}

// TradePublisher is the fourth stage. For every matched event it
// measures the submit-to-publish latency and hands the trades to the
// downstream sink in deterministic order.
type TradePublisher struct {
	sink PublishTrader
}

// NewTradePublisher creates the publish stage. A nil sink discards trades.
func NewTradePublisher(sink PublishTrader) *TradePublisher {
	if sink == nil {
		sink = NewDiscardPublishTrader()
	}
	return &TradePublisher{sink: sink}
}

func (p *TradePublisher) OnEvent(event *OrderEvent) {
	if event.Status != EventStatusMatched {
		return
	}

	latency := time.Duration(time.Now().UnixNano() - event.Timestamp)
	p.sink.PublishTrades(event.Trades...)

	logger.Debug().
		Str("order_id", event.OrderID).
		Int("trades", len(event.Trades)).
		Dur("latency", latency).
		Msg("trades published")
}
