package frame

import (
	"context"
	"time"
)

// Loop drives a per-frame callback at a fixed interval and completes the barrier after each
// frame.
type Loop struct {
	Interval time.Duration
	Barrier  *Barrier
}

// Run calls fn with the elapsed seconds since the previous frame until the context is done or
// fn returns false. Run blocks.
func (l Loop) Run(ctx context.Context, fn func(dt float64) bool) error {
	interval := l.Interval
	if interval <= 0 {
		interval = time.Second / 60
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			dt := now.Sub(last).Seconds()
			last = now

			cont := fn(dt)
			if l.Barrier != nil {
				l.Barrier.Complete()
			}
			if !cont {
				return nil
			}
		}
	}
}
