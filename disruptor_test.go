package orderproc

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEvent is a simple event type for ring buffer tests.
type TestEvent struct {
	ID    int64
	Value int64
}

// simpleHandler is a test helper that wraps a function.
type simpleHandler[T any] struct {
	fn func(*T)
}

func (h *simpleHandler[T]) OnEvent(e *T) {
	h.fn(e)
}

func TestRingBuffer_BasicOperations(t *testing.T) {
	var processed []int64
	var mu sync.Mutex

	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			mu.Lock()
			processed = append(processed, e.ID)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for i := int64(1); i <= 10; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := rb.Shutdown(ctx)
	require.NoError(t, err)

	// All events processed in publish order.
	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, processed, 10)
	for i := int64(1); i <= 10; i++ {
		assert.Equal(t, i, processed[i-1])
	}
}

func TestRingBuffer_ClaimCommit(t *testing.T) {
	var processed []TestEvent
	var mu sync.Mutex

	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			mu.Lock()
			processed = append(processed, *e)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	seq, slot := rb.Claim()
	require.NotEqual(t, int64(-1), seq)
	slot.ID = 42
	slot.Value = 100
	rb.Commit(seq)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := rb.Shutdown(ctx)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, processed, 1)
	assert.Equal(t, int64(42), processed[0].ID)
	assert.Equal(t, int64(100), processed[0].Value)
}

func TestRingBuffer_StageChaining(t *testing.T) {
	// Each stage records the order in which it touched each event;
	// a later stage must never run before an earlier one for the same
	// sequence.
	var mu sync.Mutex
	var trace []string

	record := func(stage string) *simpleHandler[TestEvent] {
		return &simpleHandler[TestEvent]{
			fn: func(e *TestEvent) {
				mu.Lock()
				trace = append(trace, stage)
				mu.Unlock()
			},
		}
	}

	rb := NewRingBuffer[TestEvent](16, record("a"), record("b"), record("c"), record("d"))
	rb.Start()

	require.NoError(t, rb.Publish(TestEvent{ID: 1}))
	require.NoError(t, rb.Publish(TestEvent{ID: 2}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, trace, 8)

	// Per stage: exactly two invocations, and within the trace each
	// stage appears only after its predecessor has appeared at least
	// as often.
	counts := map[string]int{}
	for _, stage := range trace {
		switch stage {
		case "b":
			assert.Greater(t, counts["a"], counts["b"])
		case "c":
			assert.Greater(t, counts["b"], counts["c"])
		case "d":
			assert.Greater(t, counts["c"], counts["d"])
		}
		counts[stage]++
	}
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 2, counts["d"])
}

func TestRingBuffer_StagesMutateInPlace(t *testing.T) {
	first := &simpleHandler[TestEvent]{fn: func(e *TestEvent) { e.Value++ }}
	second := &simpleHandler[TestEvent]{fn: func(e *TestEvent) { e.Value *= 10 }}

	var final atomic.Int64
	third := &simpleHandler[TestEvent]{fn: func(e *TestEvent) { final.Store(e.Value) }}

	rb := NewRingBuffer[TestEvent](16, first, second, third)
	rb.Start()

	require.NoError(t, rb.Publish(TestEvent{Value: 4}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	assert.Equal(t, int64(50), final.Load())
}

func TestRingBuffer_SlotReuseNoLeak(t *testing.T) {
	// Tiny buffer so every slot is recycled several times. A producer
	// that overwrites the whole slot must never observe stale fields.
	var mu sync.Mutex
	var seen []TestEvent

	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			mu.Lock()
			seen = append(seen, *e)
			mu.Unlock()
		},
	}

	rb := NewRingBuffer[TestEvent](4, handler)
	rb.Start()

	for i := int64(0); i < 20; i++ {
		seq, slot := rb.Claim()
		require.GreaterOrEqual(t, seq, int64(0))
		if i%2 == 0 {
			*slot = TestEvent{ID: i, Value: i * 100}
		} else {
			// Odd events deliberately leave Value at its zero value.
			*slot = TestEvent{ID: i}
		}
		rb.Commit(seq)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 20)
	for i, e := range seen {
		assert.Equal(t, int64(i), e.ID)
		if i%2 == 0 {
			assert.Equal(t, int64(i*100), e.Value)
		} else {
			assert.Zero(t, e.Value, "stale value leaked into recycled slot")
		}
	}
}

func TestRingBuffer_ClaimAfterShutdown(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e *TestEvent) {}}
	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	ctx := context.Background()
	_ = rb.Shutdown(ctx)

	seq, slot := rb.Claim()
	assert.Equal(t, int64(-1), seq)
	assert.Nil(t, slot)

	assert.ErrorIs(t, rb.Publish(TestEvent{ID: 1}), ErrShutdown)
}

func TestRingBuffer_GetPendingEvents(t *testing.T) {
	blockCh := make(chan struct{})
	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: int64(i)}))
	}

	time.Sleep(10 * time.Millisecond)

	pending := rb.GetPendingEvents()
	assert.GreaterOrEqual(t, pending, int64(4))

	close(blockCh)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)

	assert.Equal(t, int64(0), rb.GetPendingEvents())
}

func TestRingBuffer_SequenceMonitoring(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e *TestEvent) {}}
	rb := NewRingBuffer[TestEvent](16, handler)

	assert.Equal(t, int64(-1), rb.ProducerSequence())
	assert.Equal(t, int64(-1), rb.ConsumerSequence())

	rb.Start()

	for i := 0; i < 3; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: int64(i)}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)

	assert.Equal(t, int64(2), rb.ProducerSequence())
	assert.Equal(t, int64(2), rb.ConsumerSequence())
}

func TestRingBuffer_ShutdownTimeout(t *testing.T) {
	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			time.Sleep(10 * time.Second)
		},
	}

	rb := NewRingBuffer[TestEvent](16, handler)
	rb.Start()

	require.NoError(t, rb.Publish(TestEvent{ID: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := rb.Shutdown(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRingBuffer_ConcurrentPublish(t *testing.T) {
	var count atomic.Int64

	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			count.Add(1)
		},
	}

	rb := NewRingBuffer[TestEvent](1024, handler)
	rb.Start()

	const numPublishers = 10
	const eventsPerPublisher = 100

	var wg sync.WaitGroup
	wg.Add(numPublishers)

	for i := 0; i < numPublishers; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < eventsPerPublisher; j++ {
				_ = rb.Publish(TestEvent{ID: int64(id*eventsPerPublisher + j)})
			}
		}(i)
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := rb.Shutdown(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(numPublishers*eventsPerPublisher), count.Load())
}

func TestRingBuffer_BackpressureWhenFull(t *testing.T) {
	blockCh := make(chan struct{})
	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			<-blockCh
		},
	}

	rb := NewRingBuffer[TestEvent](4, handler)
	rb.Start()

	// Fill the buffer; the consumer is stuck on the first event.
	for i := 0; i < 4; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: int64(i)}))
	}

	// The next claim must block rather than drop or overwrite.
	claimed := make(chan int64, 1)
	go func() {
		seq, slot := rb.Claim()
		if slot != nil {
			*slot = TestEvent{ID: 99}
			rb.Commit(seq)
		}
		claimed <- seq
	}()

	select {
	case seq := <-claimed:
		t.Fatalf("claim should have blocked on a full buffer, got sequence %d", seq)
	case <-time.After(50 * time.Millisecond):
	}

	close(blockCh)

	select {
	case seq := <-claimed:
		assert.Equal(t, int64(4), seq)
	case <-time.After(2 * time.Second):
		t.Fatal("claim never unblocked after consumer drained")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))
}

func TestRingBuffer_PowerOf2Validation(t *testing.T) {
	handler := &simpleHandler[TestEvent]{fn: func(e *TestEvent) {}}

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](15, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](0, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](-1, handler)
	})

	assert.Panics(t, func() {
		NewRingBuffer[TestEvent](16)
	})

	assert.NotPanics(t, func() {
		NewRingBuffer[TestEvent](16, handler)
	})
}

func TestRingBuffer_HandlerPanicIsContained(t *testing.T) {
	var processed atomic.Int64

	faulty := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			if e.ID == 2 {
				panic("boom")
			}
		},
	}
	counter := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			processed.Add(1)
		},
	}

	rb := NewRingBuffer[TestEvent](16, faulty, counter)
	rb.Start()

	for i := int64(1); i <= 3; i++ {
		require.NoError(t, rb.Publish(TestEvent{ID: i}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, rb.Shutdown(ctx))

	// A panic in stage 1 on event 2 must not stall the chain.
	assert.Equal(t, int64(3), processed.Load())
}

// --- Benchmarks ---

const benchEventsPerGoroutine = 50

func BenchmarkDisruptor(b *testing.B) {
	var count atomic.Int64
	handler := &simpleHandler[TestEvent]{
		fn: func(e *TestEvent) {
			count.Add(1)
		},
	}

	rb := NewRingBuffer[TestEvent](1024*1024, handler)
	rb.Start()

	b.ResetTimer()

	var wg sync.WaitGroup
	wg.Add(b.N)
	for i := 0; i < b.N; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < benchEventsPerGoroutine; j++ {
				_ = rb.Publish(TestEvent{ID: int64(j)})
			}
		}()
	}

	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = rb.Shutdown(ctx)
}

func BenchmarkChannel(b *testing.B) {
	ch := make(chan TestEvent, 1024*1024)
	done := make(chan struct{})

	var count atomic.Int64
	total := int64(b.N * benchEventsPerGoroutine)

	go func() {
		defer close(done)
		for range ch {
			if count.Add(1) == total {
				return
			}
		}
	}()

	b.ResetTimer()

	var wg sync.WaitGroup
	wg.Add(b.N)
	for i := 0; i < b.N; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < benchEventsPerGoroutine; j++ {
				ch <- TestEvent{ID: int64(j)}
			}
		}()
	}

	wg.Wait()
	<-done
}
