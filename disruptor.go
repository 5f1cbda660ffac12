package orderproc

import (
	"context"
	"runtime"
	"sync/atomic"

	tomb "gopkg.in/tomb.v2"
)

// EventHandler is one processing stage of the ring buffer.
type EventHandler[T any] interface {
	OnEvent(event *T)
}

// stageCursor tracks one stage's consumer sequence, padded onto its own
// cache line to avoid false sharing between stages.
type stageCursor struct {
	_        [56]byte
	sequence atomic.Int64
	_        [56]byte
}

// RingBuffer is a multi-producer ring buffer feeding a fixed chain of
// single-threaded stage handlers. Producers claim strictly increasing
// sequences with a CAS loop and commit per slot; stage N+1 never
// observes a sequence before stage N has finished it, so every handler
// processes every committed event exactly once, in commit order.
//
// Slots are preallocated and reused. Producers must overwrite every
// field of a claimed slot before committing it.
type RingBuffer[T any] struct {
	_                [56]byte
	producerSequence atomic.Int64
	_                [56]byte

	// Ring buffer core
	buffer     []T
	bufferMask int64
	capacity   int64

	// Published slice to indicate ready slots
	published []int64

	// Stage chain, one cursor per handler
	handlers []EventHandler[T]
	cursors  []*stageCursor

	isShutdown atomic.Bool
	halted     atomic.Bool
	t          tomb.Tomb
}

// NewRingBuffer creates a ring buffer with the given stage chain.
// capacity must be a power of 2 and at least one handler is required.
func NewRingBuffer[T any](capacity int64, handlers ...EventHandler[T]) *RingBuffer[T] {
	if capacity <= 0 || (capacity&(capacity-1)) != 0 {
		panic("capacity must be a power of 2")
	}
	if len(handlers) == 0 {
		panic("at least one stage handler is required")
	}

	rb := &RingBuffer[T]{
		buffer:     make([]T, capacity),
		published:  make([]int64, capacity),
		capacity:   capacity,
		bufferMask: capacity - 1,
		handlers:   handlers,
		cursors:    make([]*stageCursor, len(handlers)),
	}

	rb.producerSequence.Store(-1)
	for i := range rb.cursors {
		cursor := &stageCursor{}
		cursor.sequence.Store(-1)
		rb.cursors[i] = cursor
	}

	for i := range rb.published {
		rb.published[i] = -1
	}

	return rb
}

// Claim reserves the next sequence and returns a pointer to its slot.
// It spins while the buffer is full (the slot is still held by the
// slowest stage); that spin is the pipeline's backpressure. Concurrent
// callers receive distinct, strictly increasing sequences.
// Returns -1 and a nil slot once shutdown has begun.
func (rb *RingBuffer[T]) Claim() (int64, *T) {
	last := rb.cursors[len(rb.cursors)-1]

	for {
		if rb.isShutdown.Load() {
			return -1, nil
		}

		currentProducerSeq := rb.producerSequence.Load()
		nextSeq := currentProducerSeq + 1

		// The producer must not lap the slowest (last) stage.
		wrapPoint := nextSeq - rb.capacity
		if wrapPoint > last.sequence.Load() {
			runtime.Gosched()
			continue
		}

		if rb.producerSequence.CompareAndSwap(currentProducerSeq, nextSeq) {
			return nextSeq, &rb.buffer[nextSeq&rb.bufferMask]
		}
		// CAS lost, retry
		runtime.Gosched()
	}
}

// Commit makes a claimed slot visible to the first stage.
func (rb *RingBuffer[T]) Commit(seq int64) {
	atomic.StoreInt64(&rb.published[seq&rb.bufferMask], seq)
}

// Publish claims a slot, copies the event into it and commits it.
// Returns ErrShutdown once shutdown has begun.
func (rb *RingBuffer[T]) Publish(event T) error {
	seq, slot := rb.Claim()
	if seq < 0 {
		return ErrShutdown
	}
	*slot = event
	rb.Commit(seq)
	return nil
}

// Start launches one goroutine per stage handler.
func (rb *RingBuffer[T]) Start() {
	for i := range rb.handlers {
		stage := i
		rb.t.Go(func() error {
			rb.consumeLoop(stage)
			return nil
		})
	}
}

// Shutdown stops admitting new claims and waits for every stage to
// drain all claimed sequences. When the context expires first, the
// stages are halted and in-flight sequences are abandoned.
func (rb *RingBuffer[T]) Shutdown(ctx context.Context) error {
	rb.isShutdown.Store(true)

	last := rb.cursors[len(rb.cursors)-1]
	for {
		select {
		case <-ctx.Done():
			// Force halt: stages stop at the next spin check, any
			// handler still running is abandoned, not awaited.
			rb.halted.Store(true)
			rb.t.Kill(nil)
			return ctx.Err()
		default:
			if last.sequence.Load() >= rb.producerSequence.Load() {
				rb.halted.Store(true)
				rb.t.Kill(nil)
				return rb.t.Wait()
			}
			runtime.Gosched()
		}
	}
}

// consumeLoop processes every sequence in increasing order for one
// stage. Stage 0 waits on per-slot commits; later stages are gated on
// the previous stage's cursor. Waits spin/yield rather than block.
func (rb *RingBuffer[T]) consumeLoop(stage int) {
	cursor := rb.cursors[stage]
	nextSeq := cursor.sequence.Load() + 1

	for {
		if rb.halted.Load() {
			return
		}

		var upper int64
		if stage == 0 {
			upper = rb.producerSequence.Load()
		} else {
			upper = rb.cursors[stage-1].sequence.Load()
		}

		if nextSeq > upper {
			// Once shutdown begins, nothing beyond the last claimed
			// sequence will ever arrive.
			if rb.isShutdown.Load() && nextSeq > rb.producerSequence.Load() {
				return
			}
			runtime.Gosched()
			continue
		}

		index := nextSeq & rb.bufferMask
		if stage == 0 {
			// The sequence is claimed but may not be committed yet.
			for atomic.LoadInt64(&rb.published[index]) != nextSeq {
				if rb.halted.Load() {
					return
				}
				runtime.Gosched()
			}
		}

		rb.invoke(stage, &rb.buffer[index], nextSeq)
		cursor.sequence.Store(nextSeq)
		nextSeq++
	}
}

// invoke runs one handler on one event. A panic is fatal only to this
// stage's handling of the current sequence; the pipeline keeps going.
func (rb *RingBuffer[T]) invoke(stage int, event *T, seq int64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Int("stage", stage).
				Int64("sequence", seq).
				Interface("panic", r).
				Msg("stage handler panicked")
		}
	}()

	rb.handlers[stage].OnEvent(event)
}

// ProducerSequence returns the highest claimed sequence (for monitoring).
func (rb *RingBuffer[T]) ProducerSequence() int64 {
	return rb.producerSequence.Load()
}

// ConsumerSequence returns the last stage's sequence (for monitoring).
func (rb *RingBuffer[T]) ConsumerSequence() int64 {
	return rb.cursors[len(rb.cursors)-1].sequence.Load()
}

// GetPendingEvents returns the number of claimed sequences the last
// stage has not finished yet (for monitoring).
func (rb *RingBuffer[T]) GetPendingEvents() int64 {
	return rb.producerSequence.Load() - rb.ConsumerSequence()
}
