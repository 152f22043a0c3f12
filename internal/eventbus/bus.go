package eventbus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Default configuration
const (
	DefaultWorkerCount = 1
	DefaultQueueSize   = 16
)

// Handler processes one published item
type Handler[T any] func(T)

// Bus hands items from a producer to a bounded worker pool.
// Publish never blocks: when the queue is full the oldest queued item is
// evicted to make room, so the newest item always wins. This suits realtime
// streams where a newer item supersedes an older one.
// With a single worker, items are handled in publish order.
type Bus[T any] struct {
	name    string
	handler Handler[T]

	workQueue chan T
	wg        sync.WaitGroup

	// Shutdown signaling - closing this channel signals publishers to stop
	closing   chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	dropped uint64
}

// New creates a bus with default settings
func New[T any](name string, handler Handler[T]) *Bus[T] {
	return NewWithConfig(name, handler, DefaultWorkerCount, DefaultQueueSize)
}

// NewWithConfig creates a bus with custom worker count and queue size
func NewWithConfig[T any](name string, handler Handler[T], workerCount, queueSize int) *Bus[T] {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	b := &Bus[T]{
		name:      name,
		handler:   handler,
		workQueue: make(chan T, queueSize),
		closing:   make(chan struct{}),
	}

	for i := 0; i < workerCount; i++ {
		b.wg.Add(1)
		go b.worker(i)
	}

	log.Debug().Str("bus", name).Int("workers", workerCount).Int("queue_size", queueSize).Msg("Event bus worker pool started")
	return b
}

// worker processes items from the work queue
func (b *Bus[T]) worker(id int) {
	defer b.wg.Done()

	for item := range b.workQueue {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("bus", b.name).
						Int("worker", id).
						Msg("Event handler panicked")
				}
			}()
			b.handler(item)
		}()
	}
}

// Publish queues an item for the handler, evicting the oldest queued item if the queue is full.
// Returns false only if the bus is closing.
// Publish must be called from a single producer goroutine.
func (b *Bus[T]) Publish(item T) bool {
	select {
	case <-b.closing:
		return false
	default:
	}

	for {
		select {
		case b.workQueue <- item:
			return true
		default:
		}

		// Queue full: discard the oldest item. A worker may win the race
		// for it, in which case the next send attempt succeeds anyway.
		select {
		case <-b.workQueue:
			b.mu.Lock()
			b.dropped++
			dropped := b.dropped
			b.mu.Unlock()
			log.Debug().Str("bus", b.name).Uint64("dropped_total", dropped).Msg("Event bus queue full, evicted oldest item")
		default:
		}
	}
}

// Dropped returns how many queued items were evicted by newer ones.
func (b *Bus[T]) Dropped() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Close stops accepting items, drains the queue and waits for workers until ctx expires.
// Publish must not be called concurrently with Close.
func (b *Bus[T]) Close(ctx context.Context) {
	b.closeOnce.Do(func() {
		close(b.closing)
		close(b.workQueue)
	})

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Debug().Str("bus", b.name).Msg("Event bus workers stopped gracefully")
	case <-ctx.Done():
		log.Warn().Str("bus", b.name).Msg("Event bus shutdown timed out, some items may be lost")
	}
}
