package orderproc

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultBufferSize is the ring buffer capacity when none is configured.
	DefaultBufferSize = 1024 * 64
	// DefaultShutdownTimeout bounds the graceful drain on shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

type pipelineConfig struct {
	bufferSize      int64
	exposureLimit   decimal.Decimal
	tradeSink       PublishTrader
	updateSink      BookUpdateSink
	shutdownTimeout time.Duration
}

// PipelineOption customizes pipeline construction.
type PipelineOption func(*pipelineConfig)

// WithBufferSize sets the ring buffer capacity (must be a power of 2).
func WithBufferSize(size int64) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.bufferSize = size
	}
}

// WithExposureLimit sets the risk check's notional limit.
func WithExposureLimit(limit decimal.Decimal) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.exposureLimit = limit
	}
}

// WithPublishTrader sets the downstream trade sink.
func WithPublishTrader(sink PublishTrader) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.tradeSink = sink
	}
}

// WithBookUpdateSink sets the sink receiving book mutations.
func WithBookUpdateSink(sink BookUpdateSink) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.updateSink = sink
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for the stages to
// drain before halting them.
func WithShutdownTimeout(timeout time.Duration) PipelineOption {
	return func(cfg *pipelineConfig) {
		cfg.shutdownTimeout = timeout
	}
}

// Pipeline wires the ring buffer to the fixed four-stage chain
// Validate -> RiskCheck -> Match -> Publish and owns the matching
// engine behind the Match stage.
type Pipeline struct {
	ring            *RingBuffer[OrderEvent]
	engine          *MatchingEngine
	publisher       *OrderPublisher
	shutdownTimeout time.Duration
}

// NewPipeline builds a pipeline. It does not start consuming; call
// Start before submitting orders.
func NewPipeline(opts ...PipelineOption) *Pipeline {
	cfg := &pipelineConfig{
		bufferSize:      DefaultBufferSize,
		exposureLimit:   DefaultExposureLimit,
		tradeSink:       NewDiscardPublishTrader(),
		updateSink:      NewDiscardBookUpdateSink(),
		shutdownTimeout: DefaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	engine := NewMatchingEngine(cfg.updateSink)

	ring := NewRingBuffer[OrderEvent](cfg.bufferSize,
		&OrderValidator{},
		NewRiskChecker(cfg.exposureLimit),
		NewOrderMatcher(engine),
		NewTradePublisher(cfg.tradeSink),
	)

	return &Pipeline{
		ring:            ring,
		engine:          engine,
		publisher:       NewOrderPublisher(ring),
		shutdownTimeout: cfg.shutdownTimeout,
	}
}

// Start launches the four stage goroutines and begins consumption.
func (p *Pipeline) Start() {
	p.ring.Start()
}

// Submit enqueues an order request; see OrderPublisher.Submit.
func (p *Pipeline) Submit(symbol string, side Side, price decimal.Decimal, quantity int64, traderID string) (string, error) {
	return p.publisher.Submit(symbol, side, price, quantity, traderID)
}

// Engine exposes the matching engine for read-only queries.
func (p *Pipeline) Engine() *MatchingEngine {
	return p.engine
}

// Snapshot returns the aggregated book view for a symbol; false when
// the symbol has never been seen.
func (p *Pipeline) Snapshot(symbol string) (*BookSnapshot, bool) {
	return p.engine.Snapshot(symbol)
}

// Pending returns the number of submitted events not yet through the
// final stage.
func (p *Pipeline) Pending() int64 {
	return p.ring.GetPendingEvents()
}

// Shutdown stops admitting new orders and drains the already-committed
// sequences through all four stages. If the context carries no
// deadline, the configured shutdown timeout applies. On timeout the
// stages are force-halted and in-flight events are abandoned; that is
// logged as an operational fault, not surfaced to producers.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.shutdownTimeout)
		defer cancel()
	}

	if err := p.ring.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("pipeline drain timed out, in-flight events abandoned")
		return err
	}
	return nil
}
