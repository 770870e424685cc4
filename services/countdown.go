package services

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"
)

const labelWordSearch = "word-search"

func questionLabel(questionID uint) string {
	return "question:" + strconv.FormatUint(uint64(questionID), 10)
}

// Countdown is a room-scoped timer. It is owned by the hub and cancelled when
// a newer countdown replaces it or the room is torn down.
type Countdown struct {
	Label     string
	Total     int
	remaining atomic.Int64
	cancel    context.CancelFunc
}

func newCountdown(label string, seconds int, cancel context.CancelFunc) *Countdown {
	c := &Countdown{Label: label, Total: seconds, cancel: cancel}
	c.remaining.Store(int64(seconds))
	return c
}

func (c *Countdown) Remaining() int {
	r := c.remaining.Load()
	if r < 0 {
		return 0
	}
	return int(r)
}

func (c *Countdown) Stop() {
	c.cancel()
}

// run decrements once per tick, reporting each new value including zero. It
// returns true when the countdown reached zero without being cancelled.
func (c *Countdown) run(ctx context.Context, tick time.Duration, onTick func(remaining int)) bool {
	if c.Remaining() <= 0 {
		return ctx.Err() == nil
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			remaining := int(c.remaining.Add(-1))
			if ctx.Err() != nil {
				return false
			}
			onTick(remaining)
			if remaining <= 0 {
				return ctx.Err() == nil
			}
		}
	}
}
