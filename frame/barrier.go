package frame

import (
	"context"

	"github.com/sasha-s/go-deadlock"
)

// Waiter blocks until a number of frames have been completed by the renderer.
type Waiter interface {
	WaitFrames(ctx context.Context, n int) error
}

type frameWaiter struct {
	target uint64
	ch     chan struct{}
}

// Barrier is a synchronisation point tied to frame completion. The frame loop calls Complete
// after every rendered frame, and WaitFrames returns once the requested number of frames have
// completed after the call.
type Barrier struct {
	mu      deadlock.Mutex
	frames  uint64
	waiters []frameWaiter
}

// NewBarrier ...
func NewBarrier() *Barrier {
	return &Barrier{}
}

// Complete marks one frame as completed and releases waiters whose frames have elapsed.
func (b *Barrier) Complete() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.frames++
	kept := b.waiters[:0]
	for _, w := range b.waiters {
		if w.target <= b.frames {
			close(w.ch)
			continue
		}
		kept = append(kept, w)
	}
	b.waiters = kept
}

// Frames returns the number of frames completed so far.
func (b *Barrier) Frames() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.frames
}

// Waiting returns the number of callers blocked in WaitFrames.
func (b *Barrier) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiters)
}

// WaitFrames blocks until n frames complete or the context is done.
func (b *Barrier) WaitFrames(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}

	b.mu.Lock()
	w := frameWaiter{target: b.frames + uint64(n), ch: make(chan struct{})}
	b.waiters = append(b.waiters, w)
	b.mu.Unlock()

	select {
	case <-w.ch:
		return nil
	case <-ctx.Done():
		b.mu.Lock()
		for i, other := range b.waiters {
			if other.ch == w.ch {
				b.waiters = append(b.waiters[:i], b.waiters[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		return ctx.Err()
	}
}
