package scanner

import "time"

// Ticker paces the decode loop at one attempt per frame.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates the Ticker for a new capture session.
type TickerFunc func() Ticker

// FrameTicker paces sessions at fps frames per second. Ticks that the
// loop is too slow to take are dropped, never queued.
func FrameTicker(fps int) TickerFunc {
	if fps <= 0 {
		fps = DefaultFPS
	}
	interval := time.Second / time.Duration(fps)
	return func() Ticker {
		return timeTicker{time.NewTicker(interval)}
	}
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }
