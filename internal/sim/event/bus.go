package event

import (
	"context"
	"errors"
	"sync"

	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

var ErrBusClosed = errors.New("event bus is closed")

// Bus is an in-process, buffered queue of batch events. It is created by the
// module and handed to publishers and the consumer explicitly.
type Bus struct {
	mu     sync.RWMutex
	closed bool
	ch     chan entity.BatchEvent
}

func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}

	return &Bus{
		ch: make(chan entity.BatchEvent, buffer),
	}
}

func (b *Bus) Publish(ctx context.Context, event entity.BatchEvent) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}

	select {
	case b.ch <- event:
		b.mu.RUnlock()
		return nil
	case <-ctx.Done():
		b.mu.RUnlock()
		return ctx.Err()
	}
}

// Len reports how many events are queued and not yet taken by a worker.
func (b *Bus) Len() int {
	return len(b.ch)
}

func (b *Bus) Subscribe() <-chan entity.BatchEvent {
	return b.ch
}

func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	close(b.ch)
}
